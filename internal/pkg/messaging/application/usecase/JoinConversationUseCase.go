package usecase

import (
	"context"
	"fmt"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// JoinConversationInput validates a request to attach a user session to a
// conversation room.
type JoinConversationInput struct {
	ConversationID string
	UserID         string
}

// JoinConversationUseCase ensures the user belongs to the conversation before
// the session is registered as a room subscriber. A refusal is fatal to the
// request, never to the connection.
type JoinConversationUseCase struct {
	Repo repository.MessageRepository
}

func NewJoinConversationUseCase(repo repository.MessageRepository) *JoinConversationUseCase {
	return &JoinConversationUseCase{Repo: repo}
}

func (uc *JoinConversationUseCase) Execute(ctx context.Context, in JoinConversationInput) error {
	if in.ConversationID == "" || in.UserID == "" {
		return fmt.Errorf("conversation_id and user_id are required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return messaging.ErrNotParticipant
	}
	return nil
}
