package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/realtime"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
)

// MarkReadController is the HTTP counterpart of the mark_read socket frame.
type MarkReadController struct {
	UC *usecase.MarkReadUseCase
}

func NewMarkReadController(pool *pgxpool.Pool, hub *realtime.Hub) *MarkReadController {
	repo := adapter.NewPgMessageRepository(pool)
	return &MarkReadController{UC: usecase.NewMarkReadUseCase(repo, hub)}
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		updated, err := h.UC.Execute(ctx, usecase.MarkReadInput{
			ConversationID: conversationID,
			UserID:         ident.UserID,
		})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked_read": updated})
	}
}
