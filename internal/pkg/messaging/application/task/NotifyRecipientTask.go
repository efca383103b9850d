package task

import (
	"context"
	"encoding/json"
	"time"

	qport "github.com/kouekamluc/ascai-messaging/internal/infrastructure/queue/port"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// NotifyRecipientTaskType is the queue task name for recording an offline
// recipient's notification.
const NotifyRecipientTaskType = "messaging:notify_recipient"

// NotifyRecipientPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type NotifyRecipientPayload struct {
	RecipientID    string    `json:"recipientId"`
	ConversationID string    `json:"conversationId"`
	MessageID      int64     `json:"messageId"`
	SenderID       string    `json:"senderId"`
	Preview        string    `json:"preview"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RegisterNotifyRecipientTask binds the task handler to the provided server.
// The handler is idempotent: the repository upserts on the (recipient,
// conversation, message) key, so queue redelivery never duplicates a
// notification.
func RegisterNotifyRecipientTask(srv qport.Server, repo repository.MessageRepository) {
	srv.Register(NotifyRecipientTaskType, func(ctx context.Context, t qport.Task) error {
		var p NotifyRecipientPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		_, err := repo.SaveNotification(ctx, messaging.Notification{
			RecipientID:    p.RecipientID,
			ConversationID: p.ConversationID,
			MessageID:      p.MessageID,
			SenderID:       p.SenderID,
			Preview:        p.Preview,
			CreatedAt:      p.CreatedAt,
		})
		return err
	})
}
