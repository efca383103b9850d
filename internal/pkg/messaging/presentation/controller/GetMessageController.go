package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// GetMessageController serves history/backfill pages, newest first, with a
// has_more flag so reconnecting clients can walk back to their last-seen id.
type GetMessageController struct {
	UC *usecase.GetMessageUseCase
}

func NewGetMessageController(pool *pgxpool.Pool) *GetMessageController {
	repo := adapter.NewPgMessageRepository(pool)
	return &GetMessageController{UC: usecase.NewGetMessageUseCase(repo)}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		page := 1
		perPage := 50
		if v := c.Query("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				page = n
			}
		}
		if v := c.Query("per_page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				perPage = n
			}
		}

		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, hasMore, err := h.UC.Execute(ctx, usecase.GetMessageInput{
			ConversationID: conversationID,
			UserID:         ident.UserID,
			Page:           page,
			PerPage:        perPage,
		})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		out := wire.HistoryPage{
			Messages: make([]wire.MessagePayload, 0, len(msgs)),
			Page:     page,
			PerPage:  perPage,
			HasMore:  hasMore,
		}
		for _, m := range msgs {
			out.Messages = append(out.Messages, usecase.ToPayload(m))
		}
		c.JSON(http.StatusOK, out)
	}
}
