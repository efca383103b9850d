package usecase

import (
	"context"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// StartConversationInput identifies the two parties of a direct thread.
type StartConversationInput struct {
	UserID      string
	OtherUserID string
}

// StartConversationUseCase resolves the unique conversation between two
// users, creating it on first contact. Participant pairs are unique, so
// repeated starts always land on the same thread.
type StartConversationUseCase struct {
	Repo repository.MessageRepository
}

func NewStartConversationUseCase(repo repository.MessageRepository) *StartConversationUseCase {
	return &StartConversationUseCase{Repo: repo}
}

func (uc *StartConversationUseCase) Execute(ctx context.Context, in StartConversationInput) (*messaging.Conversation, bool, error) {
	if in.UserID == "" || in.OtherUserID == "" {
		return nil, false, fmt.Errorf("both user ids are required")
	}
	if in.UserID == in.OtherUserID {
		return nil, false, messaging.ErrSelfConversation
	}

	conv, created, err := uc.Repo.FindOrCreateConversation(ctx, in.UserID, in.OtherUserID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &conv, created, nil
}
