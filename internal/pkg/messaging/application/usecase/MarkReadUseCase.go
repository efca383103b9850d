package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// MarkReadInput identifies the conversation the reader has caught up on.
type MarkReadInput struct {
	ConversationID string
	UserID         string
}

// MarkReadUseCase flags all peer-sent messages as read and announces the
// read state to the room so a live peer can update its receipts.
type MarkReadUseCase struct {
	Repo  repository.MessageRepository
	Rooms RoomPublisher
}

func NewMarkReadUseCase(repo repository.MessageRepository, rooms RoomPublisher) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo, Rooms: rooms}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (int64, error) {
	if in.ConversationID == "" || in.UserID == "" {
		return 0, fmt.Errorf("conversation_id and user_id are required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return 0, messaging.ErrNotParticipant
	}

	updated, err := uc.Repo.MarkConversationRead(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if updated == 0 {
		return 0, nil
	}

	frame := wire.ReadFrame{Type: wire.TypeRead, ConversationID: in.ConversationID, UserID: in.UserID}
	if payload, err := json.Marshal(frame); err == nil {
		// Best effort: a lost read event self-corrects on the next backfill.
		_ = uc.Rooms.Publish(ctx, in.ConversationID, payload)
	}
	return updated, nil
}
