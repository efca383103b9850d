package messaging

import "time"

// NotificationPreviewLength caps the body excerpt stored on a notification.
const NotificationPreviewLength = 100

// Notification is the durable record created when a message could not be
// pushed live: the recipient had no open session anywhere. It bridges the
// realtime path to the rest of the application ("new message" on next login).
type Notification struct {
	ID             string    `db:"id"`
	RecipientID    string    `db:"recipient_id"`
	ConversationID string    `db:"conversation_id"`
	MessageID      int64     `db:"message_seq"`
	SenderID       string    `db:"sender_id"`
	Preview        string    `db:"preview"`
	CreatedAt      time.Time `db:"created_at"`
	SeenAt         *time.Time `db:"seen_at"`
}
