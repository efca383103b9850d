package messaging

import "time"

// Conversation is a direct thread between exactly two users. The participant
// pair is unique: starting a chat between the same two users always resolves
// to the same conversation. LastSeq is the persistence-side sequence counter
// from which message IDs are assigned.
type Conversation struct {
	ID           string    `db:"id"`
	ParticipantA string    `db:"participant_a"`
	ParticipantB string    `db:"participant_b"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastSeq      int64     `db:"last_seq"`
}

// HasParticipant tells whether userID is one of the two parties.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.ParticipantA || userID == c.ParticipantB)
}

// OtherParticipant returns the peer of userID, or "" if userID is not a
// participant.
func (c Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// ConversationSummary is the list-view projection: the conversation plus the
// viewer's unread count and the latest message, if any.
type ConversationSummary struct {
	Conversation
	UnreadCount int64
	LastMessage *Message
}
