package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/presence"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
)

// OnlineUsersController reports the presence of the caller's conversation
// peers: who is online now, and when the others were last seen.
type OnlineUsersController struct {
	tracker *presence.Tracker
	repo    repository.MessageRepository
}

func NewOnlineUsersController(pool *pgxpool.Pool, tracker *presence.Tracker) *OnlineUsersController {
	return &OnlineUsersController{tracker: tracker, repo: adapter.NewPgMessageRepository(pool)}
}

func (h *OnlineUsersController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := currentIdentity(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		summaries, err := h.repo.ListConversations(ctx, ident.UserID)
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		seen := make(map[string]struct{}, len(summaries))
		out := make([]gin.H, 0, len(summaries))
		for _, s := range summaries {
			peer := s.OtherParticipant(ident.UserID)
			if peer == "" {
				continue
			}
			if _, dup := seen[peer]; dup {
				continue
			}
			seen[peer] = struct{}{}

			st, err := h.tracker.State(ctx, peer)
			if err != nil {
				continue
			}
			entry := gin.H{"user_id": peer, "is_online": st.IsOnline}
			if !st.LastSeen.IsZero() {
				entry["last_seen"] = st.LastSeen
			}
			out = append(out, entry)
		}
		c.JSON(http.StatusOK, gin.H{"users": out, "count": len(out)})
	}
}
