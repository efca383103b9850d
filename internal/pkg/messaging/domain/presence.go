package messaging

import "time"

// PresenceState is the per-user aggregate of "is any session open" plus the
// last-seen timestamp. A user with three tabs open is online once; they go
// offline only when the last session closes.
type PresenceState struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}
