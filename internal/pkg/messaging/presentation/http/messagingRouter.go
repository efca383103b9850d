package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/identity"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/realtime"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/presence"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/usecase"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/presentation/controller"
)

// Deps bundles the shared infrastructure handed down from main.
type Deps struct {
	Pool     *pgxpool.Pool
	Hub      *realtime.Hub
	Verifier identity.Verifier
	Tracker  *presence.Tracker
	Dispatch usecase.Dispatcher
}

// RegisterRoutes registers messaging endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
// The plain HTTP endpoints are a first-class transport: everything a socket
// can do to send/read survives the socket being entirely absent.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	socketCtl := controller.NewChatSocketController(d.Pool, d.Hub, d.Verifier, d.Tracker, d.Dispatch)
	sendCtl := controller.NewSendMessageController(d.Pool, d.Hub, d.Dispatch)
	getCtl := controller.NewGetMessageController(d.Pool)
	startCtl := controller.NewStartConversationController(d.Pool)
	readCtl := controller.NewMarkReadController(d.Pool, d.Hub)
	listCtl := controller.NewConversationListController(d.Pool)
	unreadCtl := controller.NewUnreadCountController(d.Pool)
	onlineCtl := controller.NewOnlineUsersController(d.Pool, d.Tracker)
	notifCtl := controller.NewNotificationListController(d.Pool)

	// GET /api/v1/ws -> websocket endpoint for realtime traffic
	g.GET("/ws", socketCtl.Handle())

	authed := g.Group("", controller.AuthMiddleware(d.Verifier))

	authed.POST("/conversation/start/:userId", startCtl.Handle())
	authed.POST("/conversation/:conversationId/send", sendCtl.Handle())
	authed.GET("/conversation/:conversationId/messages", getCtl.Handle())
	authed.POST("/conversation/:conversationId/read", readCtl.Handle())

	authed.GET("/conversations", listCtl.Handle())
	authed.GET("/conversations/unread-count", unreadCtl.Handle())
	authed.GET("/online-users", onlineCtl.Handle())
	authed.GET("/notifications", notifCtl.Handle())
}
