package usecase

import (
	"context"
	"fmt"

	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// GetUnreadCountInput wraps the viewer id.
type GetUnreadCountInput struct {
	UserID string
}

// GetUnreadCountUseCase returns the total number of unread messages across
// all of the viewer's conversations, for the badge shown on login.
type GetUnreadCountUseCase struct {
	Repo repository.MessageRepository
}

func NewGetUnreadCountUseCase(repo repository.MessageRepository) *GetUnreadCountUseCase {
	return &GetUnreadCountUseCase{Repo: repo}
}

func (uc *GetUnreadCountUseCase) Execute(ctx context.Context, in GetUnreadCountInput) (int64, error) {
	if in.UserID == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	n, err := uc.Repo.UnreadCount(ctx, in.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return n, nil
}
