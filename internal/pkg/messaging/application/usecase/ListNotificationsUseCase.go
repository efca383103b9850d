package usecase

import (
	"context"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// ListNotificationsInput wraps the recipient id.
type ListNotificationsInput struct {
	UserID string
}

// ListNotificationsUseCase returns the unseen notification records created
// for messages that could not be pushed live.
type ListNotificationsUseCase struct {
	Repo repository.MessageRepository
}

func NewListNotificationsUseCase(repo repository.MessageRepository) *ListNotificationsUseCase {
	return &ListNotificationsUseCase{Repo: repo}
}

func (uc *ListNotificationsUseCase) Execute(ctx context.Context, in ListNotificationsInput) ([]messaging.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	out, err := uc.Repo.ListNotifications(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return out, nil
}
