package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/realtime"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// SendMessageController is the HTTP fallback send path. It runs the exact
// same pipeline as a socket send_message frame and answers with the same
// message payload shape, so client reconciliation is transport-agnostic.
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(pool *pgxpool.Pool, hub *realtime.Hub, dispatch usecase.Dispatcher) *SendMessageController {
	repo := adapter.NewPgMessageRepository(pool)
	return &SendMessageController{UC: usecase.NewSendMessageUseCase(repo, hub, dispatch)}
}

type sendMessageRequest struct {
	Content  string `json:"content" binding:"required"`
	ClientID string `json:"client_id"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ConversationID: conversationID,
			SenderID:       ident.UserID,
			Content:        req.Content,
			IsAdmin:        ident.IsAdmin,
		})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		frame := wire.MessageFrame{Type: wire.TypeMessage, Data: usecase.ToPayload(*msg)}
		frame.Data.ClientID = req.ClientID
		c.JSON(http.StatusCreated, frame)
	}
}

// writeUseCaseError maps the error taxonomy onto HTTP statuses, mirroring
// the frame codes the socket gateway uses.
func writeUseCaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "user is not a participant in this conversation"})
	case errors.Is(err, messaging.ErrConversationGone):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, usecase.ErrPersistence), errors.Is(err, usecase.ErrPublish):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unable to process the request"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
