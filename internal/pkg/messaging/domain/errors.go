package messaging

import "errors"

// Domain-level errors for messaging behaviors. Presentation layers map these
// onto frame codes and HTTP statuses; none of them is fatal to a live
// connection.
var (
	ErrInvalidConversation = errors.New("messaging: conversation/message mismatch")
	ErrNotParticipant      = errors.New("messaging: user is not a participant in the conversation")
	ErrEmptyMessage        = errors.New("messaging: empty message body")
	ErrContentTooLong      = errors.New("messaging: message body exceeds maximum length")
	ErrSelfConversation    = errors.New("messaging: cannot start a conversation with yourself")
	ErrConversationGone    = errors.New("messaging: conversation not found")
)
