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

// NotificationListController returns the unseen "new message" records
// accumulated while the caller had no open session.
type NotificationListController struct {
	UC *usecase.ListNotificationsUseCase
}

func NewNotificationListController(pool *pgxpool.Pool) *NotificationListController {
	repo := adapter.NewPgMessageRepository(pool)
	return &NotificationListController{UC: usecase.NewListNotificationsUseCase(repo)}
}

func (h *NotificationListController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		notifs, err := h.UC.Execute(ctx, usecase.ListNotificationsInput{UserID: ident.UserID})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		out := make([]gin.H, 0, len(notifs))
		for _, n := range notifs {
			out = append(out, gin.H{
				"id":              n.ID,
				"conversation_id": n.ConversationID,
				"message_id":      n.MessageID,
				"sender_id":       n.SenderID,
				"preview":         n.Preview,
				"created_at":      n.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"notifications": out, "count": len(out)})
	}
}
