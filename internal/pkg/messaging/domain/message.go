package messaging

import (
	"strings"
	"time"
)

// MaxContentLength bounds a single message body. Anything longer is rejected
// before it reaches persistence.
const MaxContentLength = 4000

// Message is an immutable log entry in a conversation. ID is the sequence
// number assigned by the persistence store and is strictly increasing within
// its conversation; it is the ordering and dedup authority for every
// downstream consumer. Once persisted the only mutable parts are the
// read/delivered flags.
type Message struct {
	ID             int64     `db:"seq"`
	ConversationID string    `db:"conversation_id"`
	SenderID       string    `db:"sender_id"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
	IsRead         bool      `db:"is_read"`
	Delivered      bool      `db:"delivered"`
	IsAdminMessage bool      `db:"is_admin_message"`
}

// NewMessage validates and normalizes a message prior to persistence.
// The returned message has no ID; the repository assigns it atomically.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, ErrInvalidConversation
	}

	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return nil, ErrEmptyMessage
	}
	if len(m.Content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}

// Preview returns a truncated copy of the content suitable for notification
// records and list views. Truncation counts characters, not bytes, so
// multi-byte runes are never split.
func (m Message) Preview(max int) string {
	if max <= 0 || len(m.Content) <= max {
		return m.Content
	}
	runes := []rune(m.Content)
	if len(runes) <= max {
		return m.Content
	}
	return string(runes[:max])
}
