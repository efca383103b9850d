package messaging

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageTrimsAndStamps(t *testing.T) {
	m, err := NewMessage(Message{
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "  hello there  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", m.Content)
	assert.False(t, m.CreatedAt.IsZero())
	assert.Zero(t, m.ID)
}

func TestNewMessageKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMessage(Message{ConversationID: "c1", SenderID: "u1", Content: "hi", CreatedAt: at})
	require.NoError(t, err)
	assert.Equal(t, at, m.CreatedAt)
}

func TestNewMessageRejectsEmptyContent(t *testing.T) {
	_, err := NewMessage(Message{ConversationID: "c1", SenderID: "u1", Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestNewMessageRejectsMissingIDs(t *testing.T) {
	_, err := NewMessage(Message{SenderID: "u1", Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalidConversation)

	_, err = NewMessage(Message{ConversationID: "c1", Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalidConversation)
}

func TestNewMessageRejectsOversizedContent(t *testing.T) {
	_, err := NewMessage(Message{
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        strings.Repeat("x", MaxContentLength+1),
	})
	assert.ErrorIs(t, err, ErrContentTooLong)
}

func TestPreviewTruncates(t *testing.T) {
	m := Message{Content: strings.Repeat("a", 200)}
	assert.Len(t, m.Preview(NotificationPreviewLength), NotificationPreviewLength)
	assert.Equal(t, "short", Message{Content: "short"}.Preview(NotificationPreviewLength))
	assert.Equal(t, "full", Message{Content: "full"}.Preview(0))
}

func TestPreviewNeverSplitsARune(t *testing.T) {
	m := Message{Content: strings.Repeat("é", 120)}
	got := m.Preview(NotificationPreviewLength)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, NotificationPreviewLength, utf8.RuneCountInString(got))

	emoji := Message{Content: strings.Repeat("🙂", 3)}
	assert.Equal(t, "🙂🙂", emoji.Preview(2))
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{ParticipantA: "a", ParticipantB: "b"}
	assert.True(t, c.HasParticipant("a"))
	assert.True(t, c.HasParticipant("b"))
	assert.False(t, c.HasParticipant("c"))
	assert.False(t, c.HasParticipant(""))

	assert.Equal(t, "b", c.OtherParticipant("a"))
	assert.Equal(t, "a", c.OtherParticipant("b"))
	assert.Equal(t, "", c.OtherParticipant("c"))
}
