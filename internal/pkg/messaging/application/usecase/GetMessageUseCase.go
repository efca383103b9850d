package usecase

import (
	"context"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// GetMessageInput carries pagination parameters for a conversation's history.
// Pages are ordered by id descending so page 1 is always the newest slice,
// which is what reconnecting clients backfill from.
type GetMessageInput struct {
	ConversationID string
	UserID         string
	Page           int
	PerPage        int
}

// GetMessageUseCase fetches one backfill page for a conversation the user
// participates in.
type GetMessageUseCase struct {
	Repo repository.MessageRepository
}

func NewGetMessageUseCase(repo repository.MessageRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// Execute returns the page and whether older pages remain.
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]messaging.Message, bool, error) {
	if in.ConversationID == "" {
		return nil, false, fmt.Errorf("conversation_id is required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, false, messaging.ErrNotParticipant
	}

	msgs, hasMore, err := uc.Repo.GetMessagesPage(ctx, in.ConversationID, in.Page, in.PerPage)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, hasMore, nil
}
