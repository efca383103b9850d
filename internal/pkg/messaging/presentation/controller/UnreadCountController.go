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

// UnreadCountController serves the total unread badge shown on login.
type UnreadCountController struct {
	UC *usecase.GetUnreadCountUseCase
}

func NewUnreadCountController(pool *pgxpool.Pool) *UnreadCountController {
	repo := adapter.NewPgMessageRepository(pool)
	return &UnreadCountController{UC: usecase.NewGetUnreadCountUseCase(repo)}
}

func (h *UnreadCountController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		n, err := h.UC.Execute(ctx, usecase.GetUnreadCountInput{UserID: ident.UserID})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	}
}
