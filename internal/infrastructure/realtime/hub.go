package realtime

import (
	"context"
	"log"
	"strings"
	"sync"

	psport "github.com/kouekamluc/ascai-messaging/internal/infrastructure/pubsub/port"
)

const (
	topicPattern    = "chat.*"
	roomTopicPrefix = "chat.room."
	userTopicPrefix = "chat.user."
)

// RoomTopic returns the fabric topic for a conversation.
func RoomTopic(conversationID string) string {
	return roomTopicPrefix + conversationID
}

// UserTopic returns the fabric topic addressing all sessions of one user,
// on whichever process they are attached.
func UserTopic(userID string) string {
	return userTopicPrefix + userID
}

// room is the local subscriber set for one conversation. Each room carries
// its own lock so join/leave/fanout on one conversation never blocks another.
type room struct {
	mu      sync.RWMutex
	members map[string]*Session // sessionID -> session
}

func (rm *room) add(sess *Session) {
	rm.mu.Lock()
	rm.members[sess.ID] = sess
	rm.mu.Unlock()
}

func (rm *room) remove(sessionID string) int {
	rm.mu.Lock()
	delete(rm.members, sessionID)
	n := len(rm.members)
	rm.mu.Unlock()
	return n
}

func (rm *room) broadcast(payload []byte) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	delivered := 0
	for _, sess := range rm.members {
		if err := sess.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Hub is the room registry: it maps conversation ids to the set of local
// sessions interested in them and bridges fanout through the pub/sub fabric
// so delivery also reaches sessions held open by other server processes.
//
// Every Publish goes through the fabric, and local delivery happens from the
// fabric subscription. There is a single delivery path regardless of which
// process produced the event; subscribers dedup by message id because the
// fabric is at-least-once.
//
// A user may hold several sessions (tabs, devices) at once; all of them are
// tracked independently.
type Hub struct {
	fabric psport.PubSub

	mu           sync.RWMutex
	sessions     map[string]*Session            // sessionID -> session
	userSessions map[string]map[string]*Session // userID -> sessionID -> session
	sessionRooms map[string]map[string]struct{} // sessionID -> set of conversationIDs

	roomsMu sync.RWMutex
	rooms   map[string]*room // conversationID -> room

	stopFabric func()
}

// NewHub constructs a Hub on top of the given fabric.
func NewHub(fabric psport.PubSub) *Hub {
	return &Hub{
		fabric:       fabric,
		sessions:     make(map[string]*Session),
		userSessions: make(map[string]map[string]*Session),
		sessionRooms: make(map[string]map[string]struct{}),
		rooms:        make(map[string]*room),
	}
}

// Start subscribes the hub to all room and user topics on the fabric. It
// must be called once before any Publish.
func (h *Hub) Start(ctx context.Context) error {
	stop, err := h.fabric.Subscribe(ctx, topicPattern, h.onFabricEvent)
	if err != nil {
		return err
	}
	h.stopFabric = stop
	return nil
}

func (h *Hub) onFabricEvent(topic string, payload []byte) {
	switch {
	case strings.HasPrefix(topic, roomTopicPrefix):
		conversationID := strings.TrimPrefix(topic, roomTopicPrefix)
		if conversationID == "" {
			return
		}
		h.roomsMu.RLock()
		rm := h.rooms[conversationID]
		h.roomsMu.RUnlock()
		if rm != nil {
			rm.broadcast(payload)
		}
	case strings.HasPrefix(topic, userTopicPrefix):
		userID := strings.TrimPrefix(topic, userTopicPrefix)
		if userID == "" {
			return
		}
		h.NotifyUser(userID, payload)
	}
}

// Attach registers a session. Unlike a replace-on-attach policy, concurrent
// sessions for one user are all kept alive; presence bookkeeping is the
// tracker's job.
func (h *Hub) Attach(sess *Session) {
	h.mu.Lock()
	h.sessions[sess.ID] = sess
	byUser := h.userSessions[sess.UserID]
	if byUser == nil {
		byUser = make(map[string]*Session)
		h.userSessions[sess.UserID] = byUser
	}
	byUser[sess.ID] = sess
	h.sessionRooms[sess.ID] = make(map[string]struct{})
	h.mu.Unlock()

	sess.Start()
}

// Detach removes a session and clears all of its room memberships.
func (h *Hub) Detach(sess *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[sess.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sess.ID)
	if byUser := h.userSessions[sess.UserID]; byUser != nil {
		delete(byUser, sess.ID)
		if len(byUser) == 0 {
			delete(h.userSessions, sess.UserID)
		}
	}
	memberships := h.sessionRooms[sess.ID]
	delete(h.sessionRooms, sess.ID)
	h.mu.Unlock()

	for conversationID := range memberships {
		h.removeFromRoom(conversationID, sess.ID)
	}
}

// Join adds the session to the conversation room. The caller is responsible
// for the participant check; the hub only tracks membership.
func (h *Hub) Join(conversationID string, sess *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[sess.ID]; !ok {
		h.mu.Unlock()
		return
	}
	h.sessionRooms[sess.ID][conversationID] = struct{}{}
	h.mu.Unlock()

	// The add happens under roomsMu: a concurrent last-member leave would
	// otherwise delete the room between the lookup and the add, leaving the
	// joiner in an orphaned room no fanout can find.
	h.roomsMu.Lock()
	rm := h.rooms[conversationID]
	if rm == nil {
		rm = &room{members: make(map[string]*Session)}
		h.rooms[conversationID] = rm
	}
	rm.add(sess)
	h.roomsMu.Unlock()
}

// Leave removes the session from the conversation room.
func (h *Hub) Leave(conversationID string, sess *Session) {
	h.mu.Lock()
	if memberships, ok := h.sessionRooms[sess.ID]; ok {
		delete(memberships, conversationID)
	}
	h.mu.Unlock()

	h.removeFromRoom(conversationID, sess.ID)
}

func (h *Hub) removeFromRoom(conversationID, sessionID string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	rm := h.rooms[conversationID]
	if rm == nil {
		return
	}
	if rm.remove(sessionID) == 0 {
		delete(h.rooms, conversationID)
	}
}

// Publish is the single write path to reach a room's subscribers, local and
// remote. It never delivers directly: the payload goes to the fabric, and
// local fanout happens when the fabric echoes it back.
func (h *Hub) Publish(ctx context.Context, conversationID string, payload []byte) error {
	return h.fabric.Publish(ctx, RoomTopic(conversationID), payload)
}

// PublishToUser reaches every session of userID across all processes. Room
// membership is irrelevant: this is the path for per-user events such as
// new-message notifications outside a joined room.
func (h *Hub) PublishToUser(ctx context.Context, userID string, payload []byte) error {
	return h.fabric.Publish(ctx, UserTopic(userID), payload)
}

// NotifyUser delivers payload directly to every local session of the given
// user, bypassing the fabric. Used for sender echoes and per-user events.
func (h *Hub) NotifyUser(userID string, payload []byte) bool {
	h.mu.RLock()
	byUser := h.userSessions[userID]
	sessions := make([]*Session, 0, len(byUser))
	for _, sess := range byUser {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	delivered := false
	for _, sess := range sessions {
		if err := sess.Send(payload); err == nil {
			delivered = true
		}
	}
	return delivered
}

// RoomsOf returns the conversation ids the session has joined. Used for
// on-close cleanup obligations (stop-typing, presence).
func (h *Hub) RoomsOf(sess *Session) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	memberships := h.sessionRooms[sess.ID]
	out := make([]string, 0, len(memberships))
	for id := range memberships {
		out = append(out, id)
	}
	return out
}

// Close terminates all tracked sessions and stops the fabric subscription.
func (h *Hub) Close() {
	if h.stopFabric != nil {
		h.stopFabric()
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*Session)
	h.userSessions = make(map[string]map[string]*Session)
	h.sessionRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	h.roomsMu.Lock()
	h.rooms = make(map[string]*room)
	h.roomsMu.Unlock()

	for _, sess := range sessions {
		sess.Close(1001, "hub shutdown")
	}
	if len(sessions) > 0 {
		log.Printf("realtime: closed %d sessions on shutdown", len(sessions))
	}
}
