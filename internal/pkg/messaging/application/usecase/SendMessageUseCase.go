package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// SendMessageInput carries the data needed to send a new message.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Content        string
	IsAdmin        bool
}

// SendMessageUseCase is the message pipeline: validate, verify membership,
// persist with an atomic sequence assignment, publish to the room, hand off
// to the notification dispatcher. It is the single authority for ordering;
// everything after persistence is at-least-once and id-deduplicated.
type SendMessageUseCase struct {
	Repo     repository.MessageRepository
	Rooms    RoomPublisher
	Dispatch Dispatcher
}

func NewSendMessageUseCase(repo repository.MessageRepository, rooms RoomPublisher, dispatch Dispatcher) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Rooms: rooms, Dispatch: dispatch}
}

// Execute runs the pipeline and returns the persisted message bearing its
// authoritative id, for the caller to echo back to the sender.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*messaging.Message, error) {
	if in.ConversationID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("conversation_id and sender_id are required")
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		if err == messaging.ErrConversationGone {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, messaging.ErrNotParticipant
	}

	msg, err := messaging.NewMessage(messaging.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		IsAdminMessage: in.IsAdmin,
	})
	if err != nil {
		return nil, err
	}

	persisted, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	frame := wire.MessageFrame{Type: wire.TypeMessage, Data: ToPayload(persisted)}
	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	if err := uc.Rooms.Publish(ctx, in.ConversationID, payload); err != nil {
		// The message is durable; subscribers will pick it up on backfill.
		// The sender still gets an error so its pending entry is not falsely
		// confirmed by a delivery that never fanned out.
		return nil, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	if uc.Dispatch != nil {
		uc.Dispatch.MessageSent(ctx, conv, persisted)
	}
	return &persisted, nil
}

// ToPayload converts a domain message to its wire shape.
func ToPayload(m messaging.Message) wire.MessagePayload {
	return wire.MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		IsRead:         m.IsRead,
	}
}
