package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
)

// ConversationListController lists the caller's conversations with unread
// counts and last messages, newest activity first.
type ConversationListController struct {
	UC *usecase.ListConversationsUseCase
}

func NewConversationListController(pool *pgxpool.Pool) *ConversationListController {
	repo := adapter.NewPgMessageRepository(pool)
	return &ConversationListController{UC: usecase.NewListConversationsUseCase(repo)}
}

func (h *ConversationListController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		summaries, err := h.UC.Execute(ctx, usecase.ListConversationsInput{UserID: ident.UserID})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		out := make([]gin.H, 0, len(summaries))
		for _, s := range summaries {
			item := gin.H{
				"id":           s.ID,
				"peer_id":      s.OtherParticipant(ident.UserID),
				"created_at":   s.CreatedAt,
				"updated_at":   s.UpdatedAt,
				"unread_count": s.UnreadCount,
			}
			if s.LastMessage != nil {
				item["last_message"] = usecase.ToPayload(*s.LastMessage)
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, gin.H{"conversations": out, "count": len(out)})
	}
}
