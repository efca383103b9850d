// Package wire defines the JSON frames exchanged over the realtime socket
// and mirrored by the HTTP fallback, so reconciliation logic is identical on
// both transports.
package wire

import "time"

// Inbound frame types (client to server).
const (
	TypeJoinConversation = "join_conversation"
	TypeSendMessage      = "send_message"
	TypeTyping           = "typing"
	TypeMarkRead         = "mark_read"
	TypeLeave            = "leave"
)

// Outbound frame types (server to client).
const (
	TypeJoined       = "joined_conversation"
	TypeMessage      = "message"
	TypePresence     = "presence"
	TypeRead         = "read"
	TypeNotification = "notification"
	TypeError        = "error"
)

// Error codes carried on error frames.
const (
	CodeValidation  = "validation_error"
	CodePermission  = "permission_error"
	CodeUnavailable = "backend_unavailable"
	CodeBadFrame    = "bad_frame"
)

// Inbound is the envelope for every client frame. Fields beyond Type are
// populated per frame kind.
type Inbound struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
	// ClientID is an optional caller-generated correlation id on send_message
	// frames; the authoritative echo carries it back so the sender can swap
	// its optimistic pending entry without content matching.
	ClientID string `json:"client_id,omitempty"`
}

// MessagePayload is the canonical message shape. It is identical on the
// socket frame, the echo, and the HTTP fallback response.
type MessagePayload struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
	// ClientID is set only on the sender's own echo.
	ClientID string `json:"client_id,omitempty"`
}

// MessageFrame delivers a persisted message to room subscribers.
type MessageFrame struct {
	Type string         `json:"type"`
	Data MessagePayload `json:"data"`
}

// JoinedFrame acknowledges a join_conversation request.
type JoinedFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// PresenceFrame announces an online/offline transition for a user.
type PresenceFrame struct {
	Type     string    `json:"type"`
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// TypingFrame relays a typing indicator. Fire-and-forget, never persisted.
type TypingFrame struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// ReadFrame tells room subscribers that a user has read the conversation.
type ReadFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// NotificationFrame alerts a recipient to a new message outside any room
// they are currently joined to.
type NotificationFrame struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	MessageID      int64     `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	Preview        string    `json:"preview"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorFrame reports a non-fatal request error to the originating session.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HistoryPage is the HTTP backfill response: messages ordered by id
// descending, plus a flag telling the client whether older pages exist.
type HistoryPage struct {
	Messages []MessagePayload `json:"messages"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	HasMore  bool             `json:"has_more"`
}
