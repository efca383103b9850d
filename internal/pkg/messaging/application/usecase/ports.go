package usecase

import (
	"context"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
)

// RoomPublisher is the single write path use cases take to reach a
// conversation's subscribers, wherever their sessions live.
type RoomPublisher interface {
	Publish(ctx context.Context, conversationID string, payload []byte) error
}

// Dispatcher converts a freshly published message into per-recipient
// follow-up: nothing extra for recipients with a live session, a durable
// notification otherwise.
type Dispatcher interface {
	MessageSent(ctx context.Context, conv messaging.Conversation, msg messaging.Message)
}
