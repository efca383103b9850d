package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"time"

	qport "github.com/kouekamluc/ascai-messaging/internal/infrastructure/queue/port"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/task"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// PresenceReader answers whether a user currently has any open session,
// anywhere in the cluster.
type PresenceReader interface {
	State(ctx context.Context, userID string) (messaging.PresenceState, error)
}

// UserNotifier pushes a payload to every open session of a user, whether or
// not any of them has the conversation's room joined.
type UserNotifier interface {
	PublishToUser(ctx context.Context, userID string, payload []byte) error
}

// Dispatcher converts every published message into per-recipient follow-up.
// An online recipient is flagged delivered and gets a live notification
// pushed to all of their sessions; room fanout alone would miss sessions
// that have a different conversation open. An offline recipient gets a
// durable notification record written by a background worker, so the write
// never sits on the send path.
type Dispatcher struct {
	Presence PresenceReader
	Users    UserNotifier
	Queue    qport.Client
	Repo     repository.MessageRepository
}

func NewDispatcher(presence PresenceReader, users UserNotifier, queue qport.Client, repo repository.MessageRepository) *Dispatcher {
	return &Dispatcher{Presence: presence, Users: users, Queue: queue, Repo: repo}
}

// MessageSent is invoked by the pipeline after a successful persist+publish.
// Failures here never fail the send; redelivery is idempotent end to end.
func (d *Dispatcher) MessageSent(ctx context.Context, conv messaging.Conversation, msg messaging.Message) {
	recipient := conv.OtherParticipant(msg.SenderID)
	if recipient == "" {
		return
	}

	st, err := d.Presence.State(ctx, recipient)
	if err != nil {
		log.Printf("dispatch: presence lookup for %s: %v", recipient, err)
		// Fall through as offline: a spurious notification beats a lost one.
	}

	if st.IsOnline {
		if err := d.Repo.MarkDelivered(ctx, msg.ConversationID, msg.ID); err != nil {
			log.Printf("dispatch: mark delivered %s/%d: %v", msg.ConversationID, msg.ID, err)
		}
		d.notifyLive(ctx, recipient, msg)
		return
	}

	payload, err := json.Marshal(task.NotifyRecipientPayload{
		RecipientID:    recipient,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Preview:        msg.Preview(messaging.NotificationPreviewLength),
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		log.Printf("dispatch: encode notification payload: %v", err)
		return
	}

	opts := qport.EnqueueOption{
		Queue:     "messaging",
		MaxRetry:  20,
		UniqueTTL: time.Hour,
	}
	if _, err := d.Queue.Enqueue(ctx, qport.Task{Type: task.NotifyRecipientTaskType, Payload: payload}, opts); err != nil {
		log.Printf("dispatch: enqueue notification for %s: %v", recipient, err)
	}
}

// notifyLive pushes a notification frame to all of the recipient's sessions.
// A session joined to the room also got the message frame itself; the
// notification carries the conversation id so clients can dedupe.
func (d *Dispatcher) notifyLive(ctx context.Context, recipient string, msg messaging.Message) {
	frame, err := json.Marshal(wire.NotificationFrame{
		Type:           wire.TypeNotification,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Preview:        msg.Preview(messaging.NotificationPreviewLength),
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		log.Printf("dispatch: encode notification frame: %v", err)
		return
	}
	if err := d.Users.PublishToUser(ctx, recipient, frame); err != nil {
		log.Printf("dispatch: notify %s: %v", recipient, err)
	}
}
