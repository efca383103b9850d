package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/identity"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/realtime"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/presence"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	repoAdapter "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// ChatSocketController is the connection gateway: it authenticates the
// upgrade, builds a Session, registers it with the presence tracker, and
// routes inbound frames to the pipeline, tracker, and room registry until the
// client disconnects.
type ChatSocketController struct {
	hub             *realtime.Hub
	verifier        identity.Verifier
	tracker         *presence.Tracker
	sendMessageUC   *usecase.SendMessageUseCase
	joinRoomUC      *usecase.JoinConversationUseCase
	markReadUC      *usecase.MarkReadUseCase
	inflightTimeout time.Duration
}

func NewChatSocketController(pool *pgxpool.Pool, hub *realtime.Hub, verifier identity.Verifier, tracker *presence.Tracker, dispatch usecase.Dispatcher) *ChatSocketController {
	repo := repoAdapter.NewPgMessageRepository(pool)
	return &ChatSocketController{
		hub:             hub,
		verifier:        verifier,
		tracker:         tracker,
		sendMessageUC:   usecase.NewSendMessageUseCase(repo, hub, dispatch),
		joinRoomUC:      usecase.NewJoinConversationUseCase(repo),
		markReadUC:      usecase.NewMarkReadUseCase(repo, hub),
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway authenticates by token, not cookie, so origin checks
		// add nothing here.
		return true
	},
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until
// the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := ctl.authenticate(c)
		if err != nil {
			// AuthError is fatal to the connection attempt; the client must
			// retry with fresh credentials, not with backoff-reconnect.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just return.
			return
		}

		sess := realtime.NewSession(ident.UserID, ws)
		ctl.hub.Attach(sess)

		openCtx, cancelOpen := context.WithTimeout(context.Background(), ctl.inflightTimeout)
		if err := ctl.tracker.OnSessionOpen(openCtx, ident.UserID); err != nil {
			log.Printf("gateway: presence open for %s: %v", ident.UserID, err)
		}
		cancelOpen()

		// Rooms where this session has an active typing indicator; cleared
		// best-effort on disconnect so peers never see a stuck indicator.
		typingRooms := make(map[string]struct{})

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
			defer cancel()
			for conversationID := range typingRooms {
				ctl.publishTyping(ctx, conversationID, ident.UserID, false)
			}
			ctl.hub.Detach(sess)
			if err := ctl.tracker.OnSessionClose(ctx, ident.UserID); err != nil {
				log.Printf("gateway: presence close for %s: %v", ident.UserID, err)
			}
			sess.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}

			var frame wire.Inbound
			if err := json.Unmarshal(data, &frame); err != nil {
				// Unparseable transport frame is a protocol violation and the
				// one case where the connection itself is terminated.
				ctl.replyError(sess, wire.CodeBadFrame, "unparseable frame")
				return
			}

			switch frame.Type {
			case wire.TypeJoinConversation:
				ctl.handleJoin(c, sess, frame)
			case wire.TypeSendMessage:
				ctl.handleSend(c, sess, ident, frame)
			case wire.TypeTyping:
				ctl.handleTyping(c, sess, ident.UserID, frame, typingRooms)
			case wire.TypeMarkRead:
				ctl.handleMarkRead(c, sess, ident.UserID, frame)
			case wire.TypeLeave:
				if frame.ConversationID != "" {
					ctl.hub.Leave(frame.ConversationID, sess)
				}
			default:
				ctl.replyError(sess, wire.CodeBadFrame, "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) authenticate(c *gin.Context) (identity.Identity, error) {
	token := c.Query("token")
	if token == "" {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return ctl.verifier.Verify(token)
}

func (ctl *ChatSocketController) handleJoin(c *gin.Context, sess *realtime.Session, frame wire.Inbound) {
	if frame.ConversationID == "" {
		ctl.replyError(sess, wire.CodeValidation, "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	err := ctl.joinRoomUC.Execute(ctx, usecase.JoinConversationInput{
		ConversationID: frame.ConversationID,
		UserID:         sess.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(sess, err)
		return
	}

	ctl.hub.Join(frame.ConversationID, sess)

	ack := wire.JoinedFrame{Type: wire.TypeJoined, ConversationID: frame.ConversationID}
	if payload, err := json.Marshal(ack); err == nil {
		_ = sess.Send(payload)
	}
}

func (ctl *ChatSocketController) handleSend(c *gin.Context, sess *realtime.Session, ident identity.Identity, frame wire.Inbound) {
	if frame.ConversationID == "" {
		ctl.replyError(sess, wire.CodeValidation, "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	result, err := ctl.sendMessageUC.Execute(ctx, usecase.SendMessageInput{
		ConversationID: frame.ConversationID,
		SenderID:       sess.UserID,
		Content:        frame.Content,
		IsAdmin:        ident.IsAdmin,
	})
	if err != nil {
		ctl.handleUseCaseError(sess, err)
		return
	}

	// Echo the authoritative copy straight back to the sender, carrying the
	// correlation id so the client swaps its optimistic entry in place. The
	// room fanout copy arrives too and is dropped by id-based dedup.
	echo := wire.MessageFrame{Type: wire.TypeMessage, Data: usecase.ToPayload(*result)}
	echo.Data.ClientID = frame.ClientID
	if payload, err := json.Marshal(echo); err == nil {
		_ = sess.Send(payload)
	}
}

func (ctl *ChatSocketController) handleTyping(c *gin.Context, sess *realtime.Session, userID string, frame wire.Inbound, typingRooms map[string]struct{}) {
	if frame.ConversationID == "" {
		return
	}
	// Typing may only be relayed into rooms the session has actually joined;
	// the join already proved participation.
	joined := false
	for _, id := range ctl.hub.RoomsOf(sess) {
		if id == frame.ConversationID {
			joined = true
			break
		}
	}
	if !joined {
		return
	}

	if frame.IsTyping {
		typingRooms[frame.ConversationID] = struct{}{}
	} else {
		delete(typingRooms, frame.ConversationID)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()
	ctl.publishTyping(ctx, frame.ConversationID, userID, frame.IsTyping)
}

func (ctl *ChatSocketController) publishTyping(ctx context.Context, conversationID, userID string, isTyping bool) {
	frame := wire.TypingFrame{
		Type:           wire.TypeTyping,
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	// Fire and forget; a lost typing event self-corrects on the next
	// keystroke or the client-side indicator timeout.
	_ = ctl.hub.Publish(ctx, conversationID, payload)
}

func (ctl *ChatSocketController) handleMarkRead(c *gin.Context, sess *realtime.Session, userID string, frame wire.Inbound) {
	if frame.ConversationID == "" {
		ctl.replyError(sess, wire.CodeValidation, "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if _, err := ctl.markReadUC.Execute(ctx, usecase.MarkReadInput{
		ConversationID: frame.ConversationID,
		UserID:         userID,
	}); err != nil {
		ctl.handleUseCaseError(sess, err)
	}
}

func (ctl *ChatSocketController) handleUseCaseError(sess *realtime.Session, err error) {
	switch {
	case errors.Is(err, messaging.ErrNotParticipant):
		log.Printf("gateway: refused non-participant %s: %v", sess.UserID, err)
		ctl.replyError(sess, wire.CodePermission, "user is not a participant in this conversation")
	case errors.Is(err, usecase.ErrPersistence), errors.Is(err, usecase.ErrPublish):
		ctl.replyError(sess, wire.CodeUnavailable, "temporarily unable to process the request")
	default:
		ctl.replyError(sess, wire.CodeValidation, err.Error())
	}
}

func (ctl *ChatSocketController) replyError(sess *realtime.Session, code string, message string) {
	frame := wire.ErrorFrame{Type: wire.TypeError, Code: code, Message: message}
	if payload, err := json.Marshal(frame); err == nil {
		_ = sess.Send(payload)
	}
}
