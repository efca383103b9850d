package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
)

func TestStartConversationCreatesOnFirstContact(t *testing.T) {
	repo := &stubRepo{
		findOrCreate: func(_ context.Context, a, b string) (messaging.Conversation, bool, error) {
			assert.Equal(t, "alice", a)
			assert.Equal(t, "bob", b)
			return messaging.Conversation{ID: "conv-1", ParticipantA: a, ParticipantB: b}, true, nil
		},
	}
	uc := NewStartConversationUseCase(repo)

	conv, created, err := uc.Execute(context.Background(), StartConversationInput{
		UserID: "alice", OtherUserID: "bob",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "conv-1", conv.ID)
}

func TestStartConversationIdempotent(t *testing.T) {
	repo := &stubRepo{
		findOrCreate: func(_ context.Context, a, b string) (messaging.Conversation, bool, error) {
			return messaging.Conversation{ID: "conv-1", ParticipantA: a, ParticipantB: b}, false, nil
		},
	}
	uc := NewStartConversationUseCase(repo)

	conv, created, err := uc.Execute(context.Background(), StartConversationInput{
		UserID: "alice", OtherUserID: "bob",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "conv-1", conv.ID)
}

func TestStartConversationRejectsSelf(t *testing.T) {
	uc := NewStartConversationUseCase(&stubRepo{})
	_, _, err := uc.Execute(context.Background(), StartConversationInput{
		UserID: "alice", OtherUserID: "alice",
	})
	assert.ErrorIs(t, err, messaging.ErrSelfConversation)
}

func TestStartConversationRequiresBothIDs(t *testing.T) {
	uc := NewStartConversationUseCase(&stubRepo{})
	_, _, err := uc.Execute(context.Background(), StartConversationInput{UserID: "alice"})
	assert.Error(t, err)
}
