package repository

import (
	"context"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
)

// MessageRepository defines persistence operations for the messaging core.
// SaveMessage is the ordering authority: implementations must assign sequence
// ids through an atomic increment in the store itself, never through
// in-process locking, because multiple gateway instances call it
// concurrently for the same conversation.
type MessageRepository interface {
	// FindOrCreateConversation resolves the unique conversation between two
	// users, creating it if absent. The returned bool is true when a new
	// conversation was created.
	FindOrCreateConversation(ctx context.Context, userA, userB string) (messaging.Conversation, bool, error)
	GetConversation(ctx context.Context, conversationID string) (messaging.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListConversationIDs(ctx context.Context, userID string) ([]string, error)
	ListConversations(ctx context.Context, userID string) ([]messaging.ConversationSummary, error)

	// SaveMessage persists m and returns it with its assigned sequence id.
	SaveMessage(ctx context.Context, m messaging.Message) (messaging.Message, error)
	// GetMessagesPage returns one page of messages ordered by id descending,
	// plus whether older pages remain.
	GetMessagesPage(ctx context.Context, conversationID string, page, perPage int) ([]messaging.Message, bool, error)
	// MarkConversationRead flags every peer-sent message as read and returns
	// how many rows changed.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
	MarkDelivered(ctx context.Context, conversationID string, messageID int64) error
	UnreadCount(ctx context.Context, userID string) (int64, error)

	SaveNotification(ctx context.Context, n messaging.Notification) (string, error)
	ListNotifications(ctx context.Context, recipientID string) ([]messaging.Notification, error)
}
