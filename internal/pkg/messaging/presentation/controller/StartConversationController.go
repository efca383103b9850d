package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
)

// StartConversationController resolves or creates the direct thread between
// the caller and another user.
type StartConversationController struct {
	UC *usecase.StartConversationUseCase
}

func NewStartConversationController(pool *pgxpool.Pool) *StartConversationController {
	repo := adapter.NewPgMessageRepository(pool)
	return &StartConversationController{UC: usecase.NewStartConversationUseCase(repo)}
}

func (h *StartConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		otherUserID := c.Param("userId")
		if otherUserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}

		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		conv, created, err := h.UC.Execute(ctx, usecase.StartConversationInput{
			UserID:      ident.UserID,
			OtherUserID: otherUserID,
		})
		if err != nil {
			if errors.Is(err, messaging.ErrSelfConversation) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
				return
			}
			writeUseCaseError(c, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{
			"id":         conv.ID,
			"created_at": conv.CreatedAt,
			"created":    created,
		})
	}
}
