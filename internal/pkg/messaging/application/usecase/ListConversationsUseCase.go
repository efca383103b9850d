package usecase

import (
	"context"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// ListConversationsInput wraps the viewer id.
type ListConversationsInput struct {
	UserID string
}

// ListConversationsUseCase returns the viewer's conversations with unread
// counts and last messages, newest activity first.
type ListConversationsUseCase struct {
	Repo repository.MessageRepository
}

func NewListConversationsUseCase(repo repository.MessageRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]messaging.ConversationSummary, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	out, err := uc.Repo.ListConversations(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return out, nil
}
