// Package client implements the connection and reconciliation engine a
// frontend embeds to talk to the messaging service: one websocket with
// reconnect backoff, optimistic sends correlated by client id, duplicate
// suppression by message id, and an HTTP fallback for degraded networks.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// State is the connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	}
	return "unknown"
}

// ErrGaveUp is reported through OnState/Err after the reconnect budget is
// exhausted. Connect must be called again to resume.
var ErrGaveUp = errors.New("client: reconnect attempts exhausted")

// ErrNotConnected is returned by socket operations while offline and no
// HTTP fallback is configured.
var ErrNotConnected = errors.New("client: not connected")

// Options configures a Client. URL and Token are required; zero values
// elsewhere pick the defaults noted per field.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host/api/v1/ws.
	URL string
	// Token is the bearer token passed as the token query parameter.
	Token string
	// HTTPBase enables the HTTP fallback and backfill, e.g.
	// http://host/api/v1. Empty disables both.
	HTTPBase string

	// BackoffBase is the first reconnect delay. Default 1s.
	BackoffBase time.Duration
	// BackoffCap bounds the exponential delay. Default 30s.
	BackoffCap time.Duration
	// MaxRetries is the number of consecutive failed dials tolerated before
	// giving up. Default 8.
	MaxRetries int

	// SendTimeout is how long an optimistic send may wait for its echo
	// before being marked failed. Default 10s.
	SendTimeout time.Duration
	// TypingInterval throttles outgoing typing frames. Default 2s.
	TypingInterval time.Duration
	// TypingIdle is how long after the last keystroke a stop-typing frame
	// goes out. Default 3s.
	TypingIdle time.Duration
	// TypingTimeout clears a peer's stuck typing indicator when no further
	// frame arrives. Default 6s.
	TypingTimeout time.Duration

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

func (o *Options) defaults() {
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 8
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.TypingInterval <= 0 {
		o.TypingInterval = 2 * time.Second
	}
	if o.TypingIdle <= 0 {
		o.TypingIdle = 3 * time.Second
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 6 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Handlers are optional callbacks fired from the read loop goroutine.
// They must not block.
type Handlers struct {
	OnState    func(State)
	OnMessage  func(wire.MessagePayload)
	OnPresence func(userID string, online bool, lastSeen time.Time)
	OnTyping   func(userID string, isTyping bool)
	OnRead     func(conversationID, userID string)
	OnError    func(code, message string)

	// OnNotification fires for new messages in conversations other than the
	// joined one (or when no room is joined at all).
	OnNotification func(wire.NotificationFrame)
	// OnSendFailed fires when an optimistic send times out or is orphaned
	// by a disconnect. The entry stays in the view for Retry.
	OnSendFailed func(clientID string)
}

// Client maintains the socket, the per-conversation view, and the typing
// throttle. Safe for concurrent use.
type Client struct {
	opts     Options
	handlers Handlers

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	view   *View
	cancel context.CancelFunc

	// writeMu serializes frame writes; the websocket allows one writer.
	writeMu sync.Mutex

	typingMu     sync.Mutex
	typingSentAt time.Time
	typingStop   *time.Timer
	peerClear    map[string]*time.Timer
}

// New creates a Client. Connect starts it.
func New(opts Options, handlers Handlers) *Client {
	opts.defaults()
	return &Client{
		opts:      opts,
		handlers:  handlers,
		peerClear: make(map[string]*time.Timer),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if c.handlers.OnState != nil {
		c.handlers.OnState(s)
	}
}

// View returns the active conversation view, or nil before Join.
func (c *Client) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Connect starts the connection loop. It returns immediately; state
// transitions arrive through OnState. Cancel ctx or call Close to stop.
func (c *Client) Connect(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(runCtx)
}

// Close stops the connection loop and closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
}

// Join selects the conversation to attach to. If connected the join frame
// goes out immediately; otherwise it is replayed on the next (re)connect.
func (c *Client) Join(conversationID string) {
	c.mu.Lock()
	if c.view == nil || c.view.ConversationID() != conversationID {
		c.view = NewView(conversationID)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.writeJSON(wire.Inbound{Type: wire.TypeJoinConversation, ConversationID: conversationID})
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.BackoffBase << uint(attempt-1)
	if d > c.opts.BackoffCap || d <= 0 {
		d = c.opts.BackoffCap
	}
	return d
}

func (c *Client) run(ctx context.Context) {
	attempt := 0
	for {
		c.setState(StateConnecting)
		conn, _, err := c.opts.Dialer.DialContext(ctx, c.dialURL(), nil)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return
			}
			attempt++
			if attempt > c.opts.MaxRetries {
				log.Printf("client: %v after %d attempts", ErrGaveUp, attempt-1)
				c.setState(StateDisconnected)
				return
			}
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			}
			continue
		}
		attempt = 0

		c.mu.Lock()
		c.conn = conn
		view := c.view
		c.mu.Unlock()
		c.setState(StateConnected)

		if view != nil {
			c.writeJSON(wire.Inbound{Type: wire.TypeJoinConversation, ConversationID: view.ConversationID()})
		}

		c.readLoop(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		view = c.view
		c.mu.Unlock()
		_ = conn.Close()

		// In-flight sends can no longer be confirmed on this socket.
		if view != nil && view.FailAll() > 0 && c.handlers.OnSendFailed != nil {
			for _, p := range view.Pending() {
				if p.State == SendFailed {
					c.handlers.OnSendFailed(p.ClientID)
				}
			}
		}

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
	}
}

func (c *Client) dialURL() string {
	if c.opts.Token == "" {
		return c.opts.URL
	}
	sep := "?"
	for _, r := range c.opts.URL {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return c.opts.URL + sep + "token=" + c.opts.Token
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Type {
		case wire.TypeJoined:
			var f wire.JoinedFrame
			if json.Unmarshal(raw, &f) == nil {
				c.onJoined(ctx, f)
			}
		case wire.TypeMessage:
			var f wire.MessageFrame
			if json.Unmarshal(raw, &f) == nil {
				c.onMessage(ctx, f.Data)
			}
		case wire.TypePresence:
			var f wire.PresenceFrame
			if json.Unmarshal(raw, &f) == nil && c.handlers.OnPresence != nil {
				c.handlers.OnPresence(f.UserID, f.IsOnline, f.LastSeen)
			}
		case wire.TypeTyping:
			var f wire.TypingFrame
			if json.Unmarshal(raw, &f) == nil {
				c.onPeerTyping(f)
			}
		case wire.TypeRead:
			var f wire.ReadFrame
			if json.Unmarshal(raw, &f) == nil && c.handlers.OnRead != nil {
				c.handlers.OnRead(f.ConversationID, f.UserID)
			}
		case wire.TypeNotification:
			var f wire.NotificationFrame
			if json.Unmarshal(raw, &f) == nil && c.handlers.OnNotification != nil {
				c.handlers.OnNotification(f)
			}
		case wire.TypeError:
			var f wire.ErrorFrame
			if json.Unmarshal(raw, &f) == nil && c.handlers.OnError != nil {
				c.handlers.OnError(f.Code, f.Message)
			}
		}
	}
}

func (c *Client) onJoined(ctx context.Context, f wire.JoinedFrame) {
	c.setState(StateJoined)
	view := c.View()
	if view == nil || view.ConversationID() != f.ConversationID {
		return
	}
	// Rebuild from the newest page so messages that flowed while the socket
	// was down are not lost. Only messages beyond what was already rendered
	// are re-emitted; append-only handlers must not see duplicates.
	if c.opts.HTTPBase != "" {
		rendered := view.LastSeq()
		page, err := c.FetchHistory(ctx, f.ConversationID, 1, 0)
		if err != nil {
			log.Printf("client: history bootstrap: %v", err)
			return
		}
		view.Bootstrap(page)
		if c.handlers.OnMessage != nil {
			for _, m := range view.Messages() {
				if m.ID > rendered {
					c.handlers.OnMessage(m)
				}
			}
		}
	}
}

func (c *Client) onMessage(ctx context.Context, m wire.MessagePayload) {
	view := c.View()
	if view == nil || view.ConversationID() != m.ConversationID {
		return
	}
	before := view.LastSeq()
	gap := view.Apply(m)
	if gap {
		go c.backfill(ctx, view)
		return
	}
	if view.LastSeq() > before && c.handlers.OnMessage != nil {
		c.handlers.OnMessage(m)
	}
}

// backfill fetches history pages until the held gap closes.
func (c *Client) backfill(ctx context.Context, view *View) {
	if c.opts.HTTPBase == "" {
		return
	}
	for page := 1; page <= 10; page++ {
		before := view.LastSeq()
		hp, err := c.FetchHistory(ctx, view.ConversationID(), page, 0)
		if err != nil {
			log.Printf("client: backfill: %v", err)
			return
		}
		view.Merge(hp)
		if view.LastSeq() > before || !hp.HasMore {
			return
		}
	}
}

// Send queues an optimistic message and pushes it on the socket, or through
// the HTTP fallback when the socket is down. The returned client id
// identifies the pending entry for Retry and OnSendFailed.
func (c *Client) Send(ctx context.Context, content string) (string, error) {
	view := c.View()
	if view == nil {
		return "", errors.New("client: no conversation joined")
	}
	clientID := uuid.NewString()
	view.Queue(clientID, content)
	return clientID, c.push(ctx, view, clientID, content)
}

// Retry re-sends a failed pending entry under its original client id.
func (c *Client) Retry(ctx context.Context, clientID string) error {
	view := c.View()
	if view == nil {
		return errors.New("client: no conversation joined")
	}
	p := view.Retry(clientID)
	if p == nil {
		return errors.New("client: unknown or non-failed pending send")
	}
	return c.push(ctx, view, p.ClientID, p.Content)
}

func (c *Client) push(ctx context.Context, view *View, clientID, content string) error {
	c.armSendTimeout(view, clientID)

	if c.State() >= StateConnected {
		err := c.writeJSON(wire.Inbound{
			Type:           wire.TypeSendMessage,
			ConversationID: view.ConversationID(),
			Content:        content,
			ClientID:       clientID,
		})
		if err == nil {
			return nil
		}
	}
	if c.opts.HTTPBase != "" {
		msg, err := c.httpSend(ctx, view.ConversationID(), content, clientID)
		if err != nil {
			return err
		}
		c.onMessage(ctx, msg)
		return nil
	}
	return ErrNotConnected
}

func (c *Client) armSendTimeout(view *View, clientID string) {
	time.AfterFunc(c.opts.SendTimeout, func() {
		if view.Fail(clientID) && c.handlers.OnSendFailed != nil {
			c.handlers.OnSendFailed(clientID)
		}
	})
}

// MarkRead reports the joined conversation as read. Socket first, HTTP
// fallback second.
func (c *Client) MarkRead(ctx context.Context) error {
	view := c.View()
	if view == nil {
		return errors.New("client: no conversation joined")
	}
	if c.State() >= StateConnected {
		if err := c.writeJSON(wire.Inbound{Type: wire.TypeMarkRead, ConversationID: view.ConversationID()}); err == nil {
			return nil
		}
	}
	if c.opts.HTTPBase != "" {
		return c.httpMarkRead(ctx, view.ConversationID())
	}
	return ErrNotConnected
}

// Typing reports a keystroke. Frames are throttled to one per
// TypingInterval, and a stop-typing frame follows TypingIdle after the last
// call.
func (c *Client) Typing() {
	view := c.View()
	if view == nil || c.State() < StateConnected {
		return
	}
	conversationID := view.ConversationID()

	c.typingMu.Lock()
	now := time.Now()
	send := now.Sub(c.typingSentAt) >= c.opts.TypingInterval
	if send {
		c.typingSentAt = now
	}
	if c.typingStop != nil {
		c.typingStop.Stop()
	}
	c.typingStop = time.AfterFunc(c.opts.TypingIdle, func() {
		c.typingMu.Lock()
		c.typingSentAt = time.Time{}
		c.typingMu.Unlock()
		c.writeJSON(wire.Inbound{Type: wire.TypeTyping, ConversationID: conversationID, IsTyping: false})
	})
	c.typingMu.Unlock()

	if send {
		c.writeJSON(wire.Inbound{Type: wire.TypeTyping, ConversationID: conversationID, IsTyping: true})
	}
}

// onPeerTyping relays the indicator and schedules its expiry so a lost
// stop-typing frame cannot leave it stuck.
func (c *Client) onPeerTyping(f wire.TypingFrame) {
	if c.handlers.OnTyping != nil {
		c.handlers.OnTyping(f.UserID, f.IsTyping)
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if t := c.peerClear[f.UserID]; t != nil {
		t.Stop()
		delete(c.peerClear, f.UserID)
	}
	if f.IsTyping {
		userID := f.UserID
		c.peerClear[userID] = time.AfterFunc(c.opts.TypingTimeout, func() {
			c.typingMu.Lock()
			delete(c.peerClear, userID)
			c.typingMu.Unlock()
			if c.handlers.OnTyping != nil {
				c.handlers.OnTyping(userID, false)
			}
		})
	}
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}
