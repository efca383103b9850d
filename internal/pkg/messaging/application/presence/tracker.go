package presence

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	cacheport "github.com/kouekamluc/ascai-messaging/internal/infrastructure/cache/port"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repository "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/port"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

const (
	sessionCountPrefix = "presence:sessions:"
	lastSeenPrefix     = "presence:last_seen:"

	// Session counter keys expire eventually so a crashed process cannot pin
	// a user online forever; live sessions refresh the key on every open.
	sessionCountTTL = 24 * time.Hour
)

// RoomPublisher is the fanout path presence deltas take to reach peers.
type RoomPublisher interface {
	Publish(ctx context.Context, conversationID string, payload []byte) error
}

// Tracker maintains online/offline state per user across all of that user's
// sessions, on every server process. The open-session count lives in the
// shared cache and is incremented/decremented atomically, so a user with a
// tab on process A and another on process B stays online until both close.
// Presence events are published only on the 0->1 and 1->0 transitions.
type Tracker struct {
	cache cacheport.Cache
	rooms RoomPublisher
	repo  repository.MessageRepository
}

func NewTracker(cache cacheport.Cache, rooms RoomPublisher, repo repository.MessageRepository) *Tracker {
	return &Tracker{cache: cache, rooms: rooms, repo: repo}
}

// OnSessionOpen records a new session for userID and, on the 0->1
// transition, announces the user online to every conversation they
// participate in.
func (t *Tracker) OnSessionOpen(ctx context.Context, userID string) error {
	n, err := t.cache.Incr(ctx, sessionCountPrefix+userID, 1)
	if err != nil {
		return err
	}
	// Refresh the TTL only; a Set here would clobber concurrent Incrs.
	_ = t.cache.Expire(ctx, sessionCountPrefix+userID, sessionCountTTL)
	if n == 1 {
		t.broadcast(ctx, userID, true, time.Time{})
	}
	return nil
}

// OnSessionClose records a session teardown and, on the transition to 0,
// announces the user offline with a last-seen timestamp.
func (t *Tracker) OnSessionClose(ctx context.Context, userID string) error {
	n, err := t.cache.Incr(ctx, sessionCountPrefix+userID, -1)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Clamp: a negative count means a missed open (process crash); reset so
	// the next open lands on exactly 1.
	if n < 0 {
		_, _ = t.cache.Del(ctx, sessionCountPrefix+userID)
	}
	lastSeen := time.Now().UTC()
	_ = t.cache.Set(ctx, lastSeenPrefix+userID, lastSeen.Format(time.RFC3339Nano), 0)
	t.broadcast(ctx, userID, false, lastSeen)
	return nil
}

// State returns the aggregate presence of userID.
func (t *Tracker) State(ctx context.Context, userID string) (messaging.PresenceState, error) {
	st := messaging.PresenceState{UserID: userID}

	raw, err := t.cache.Get(ctx, sessionCountPrefix+userID)
	if err != nil && err != cacheport.ErrMiss {
		return st, err
	}
	if n, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && n > 0 {
		st.IsOnline = true
	}

	seen, err := t.cache.Get(ctx, lastSeenPrefix+userID)
	if err != nil && err != cacheport.ErrMiss {
		return st, err
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, seen); parseErr == nil {
		st.LastSeen = ts
	}
	return st, nil
}

func (t *Tracker) broadcast(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	frame := wire.PresenceFrame{
		Type:     wire.TypePresence,
		UserID:   userID,
		IsOnline: online,
		LastSeen: lastSeen,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}

	ids, err := t.repo.ListConversationIDs(ctx, userID)
	if err != nil {
		log.Printf("presence: list conversations for %s: %v", userID, err)
		return
	}
	for _, conversationID := range ids {
		if err := t.rooms.Publish(ctx, conversationID, payload); err != nil {
			// Best effort; a missed presence delta self-corrects on the
			// peer's next state fetch.
			log.Printf("presence: publish to %s: %v", conversationID, err)
		}
	}
}
