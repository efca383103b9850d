package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheport "github.com/kouekamluc/ascai-messaging/internal/infrastructure/cache/port"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/identity"
	psport "github.com/kouekamluc/ascai-messaging/internal/infrastructure/pubsub/port"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/realtime"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/presence"
	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
	repoAdapter "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

type gatewayFabric struct {
	mu   sync.Mutex
	subs map[string][]psport.Handler
}

func newGatewayFabric() *gatewayFabric {
	return &gatewayFabric{subs: make(map[string][]psport.Handler)}
}

func (f *gatewayFabric) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	var matched []psport.Handler
	for prefix, handlers := range f.subs {
		if strings.HasPrefix(topic, prefix) {
			matched = append(matched, handlers...)
		}
	}
	f.mu.Unlock()
	for _, h := range matched {
		h(topic, payload)
	}
	return nil
}

func (f *gatewayFabric) Subscribe(_ context.Context, pattern string, h psport.Handler) (func(), error) {
	prefix := strings.TrimSuffix(pattern, "*")
	f.mu.Lock()
	f.subs[prefix] = append(f.subs[prefix], h)
	f.mu.Unlock()
	return func() {}, nil
}

func (f *gatewayFabric) Ping(context.Context) error { return nil }
func (f *gatewayFabric) Close() error               { return nil }

type gatewayCache struct {
	mu     sync.Mutex
	values map[string]int64
}

func newGatewayCache() *gatewayCache {
	return &gatewayCache{values: make(map[string]int64)}
}

func (c *gatewayCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		return "", cacheport.ErrMiss
	}
	return "", nil
}

func (c *gatewayCache) Set(_ context.Context, key, _ string, _ time.Duration) error {
	c.mu.Lock()
	c.values[key] = 0
	c.mu.Unlock()
	return nil
}

func (c *gatewayCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return n, nil
}

func (c *gatewayCache) Incr(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] += delta
	return c.values[key], nil
}

func (c *gatewayCache) Expire(context.Context, string, time.Duration) error { return nil }
func (c *gatewayCache) Ping(context.Context) error                         { return nil }
func (c *gatewayCache) Close() error                                       { return nil }

type gatewayDispatch struct{}

func (gatewayDispatch) MessageSent(context.Context, messaging.Conversation, messaging.Message) {}

const gatewaySecret = "gateway-test-secret"

// newGateway stands up the socket endpoint with no database behind it, so
// every repository call fails as a backend error.
func newGateway(t *testing.T) (string, *identity.JWTVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := realtime.NewHub(newGatewayFabric())
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Close)

	verifier := identity.NewJWTVerifier(gatewaySecret)
	tracker := presence.NewTracker(newGatewayCache(), hub, repoAdapter.NewPgMessageRepository(nil))
	ctl := NewChatSocketController(nil, hub, verifier, tracker, gatewayDispatch{})

	r := gin.New()
	r.GET("/ws", ctl.Handle())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", verifier
}

func dialGateway(t *testing.T, url string, verifier *identity.JWTVerifier, userID string) *websocket.Conn {
	t.Helper()
	token, err := verifier.Issue(userID, "", time.Minute)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readErrorFrame(t *testing.T, conn *websocket.Conn) wire.ErrorFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f wire.ErrorFrame
	require.NoError(t, json.Unmarshal(raw, &f))
	require.Equal(t, wire.TypeError, f.Type)
	return f
}

func TestGatewayRejectsMissingToken(t *testing.T) {
	url, _ := newGateway(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayRejectsBadToken(t *testing.T) {
	url, _ := newGateway(t)

	other := identity.NewJWTVerifier("some-other-secret")
	token, err := other.Issue("alice", "", time.Minute)
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayClosesOnUnparseableFrame(t *testing.T) {
	url, verifier := newGateway(t)
	conn := dialGateway(t, url, verifier, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	f := readErrorFrame(t, conn)
	assert.Equal(t, wire.CodeBadFrame, f.Code)

	// The connection itself must be terminated after a protocol violation.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestGatewayKeepsConnectionOnUnknownFrameType(t *testing.T) {
	url, verifier := newGateway(t)
	conn := dialGateway(t, url, verifier, "alice")

	require.NoError(t, conn.WriteJSON(wire.Inbound{Type: "bogus"}))
	f := readErrorFrame(t, conn)
	assert.Equal(t, wire.CodeBadFrame, f.Code)

	// A second frame still gets a reply, proving the loop kept running.
	require.NoError(t, conn.WriteJSON(wire.Inbound{Type: "still-bogus"}))
	f = readErrorFrame(t, conn)
	assert.Equal(t, wire.CodeBadFrame, f.Code)
}

func TestGatewayJoinReportsBackendUnavailable(t *testing.T) {
	url, verifier := newGateway(t)
	conn := dialGateway(t, url, verifier, "alice")

	require.NoError(t, conn.WriteJSON(wire.Inbound{Type: wire.TypeJoinConversation, ConversationID: "conv-1"}))
	f := readErrorFrame(t, conn)
	assert.Equal(t, wire.CodeUnavailable, f.Code)
}

func TestGatewayJoinRequiresConversationID(t *testing.T) {
	url, verifier := newGateway(t)
	conn := dialGateway(t, url, verifier, "alice")

	require.NoError(t, conn.WriteJSON(wire.Inbound{Type: wire.TypeJoinConversation}))
	f := readErrorFrame(t, conn)
	assert.Equal(t, wire.CodeValidation, f.Code)
}
