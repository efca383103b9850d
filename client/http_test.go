package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

func TestClientSendFallsBackToHTTPWhileDisconnected(t *testing.T) {
	var mu sync.Mutex
	var gotAuth, gotClientID string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/conversation/conv-1/send", r.URL.Path)

		var body struct {
			Content  string `json:"content"`
			ClientID string `json:"client_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotClientID = body.ClientID
		mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(wire.MessageFrame{Type: wire.TypeMessage, Data: wire.MessagePayload{
			ID:             1,
			ConversationID: "conv-1",
			SenderID:       "alice",
			Content:        body.Content,
			CreatedAt:      time.Now().UTC(),
			ClientID:       body.ClientID,
		}})
	}))
	t.Cleanup(api.Close)

	var rendered []int64
	c := New(Options{URL: "ws://unused/ws", Token: "tok", HTTPBase: api.URL}, Handlers{
		OnMessage: func(m wire.MessagePayload) {
			mu.Lock()
			rendered = append(rendered, m.ID)
			mu.Unlock()
		},
	})
	defer c.Close()

	// No Connect: the socket is down and the fallback must carry the send.
	c.Join("conv-1")
	clientID, err := c.Send(context.Background(), "offline hello")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, clientID, gotClientID)
	assert.Equal(t, []int64{1}, rendered)
	mu.Unlock()

	// The fallback response confirms the optimistic entry like a socket echo.
	assert.Empty(t, c.View().Pending())
	msgs := c.View().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "offline hello", msgs[0].Content)
}

func TestClientFetchHistoryPassesPagingAndToken(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversation/conv-9/messages", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(wire.HistoryPage{
			Messages: []wire.MessagePayload{
				{ID: 10, ConversationID: "conv-9", Content: "newest"},
				{ID: 9, ConversationID: "conv-9", Content: "older"},
			},
			Page:    2,
			PerPage: 5,
			HasMore: true,
		})
	}))
	t.Cleanup(api.Close)

	c := New(Options{URL: "ws://unused/ws", Token: "tok", HTTPBase: api.URL}, Handlers{})
	defer c.Close()

	page, err := c.FetchHistory(context.Background(), "conv-9", 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(10), page.Messages[0].ID)
	assert.True(t, page.HasMore)
}

func TestClientMarkReadFallsBackToHTTP(t *testing.T) {
	var mu sync.Mutex
	var hits int
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/conversation/conv-1/read", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(api.Close)

	c := New(Options{URL: "ws://unused/ws", Token: "tok", HTTPBase: api.URL}, Handlers{})
	defer c.Close()

	c.Join("conv-1")
	require.NoError(t, c.MarkRead(context.Background()))
	mu.Lock()
	assert.Equal(t, 1, hits)
	mu.Unlock()
}

func TestClientHTTPErrorSurfacesBody(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "user is not a participant in this conversation"})
	}))
	t.Cleanup(api.Close)

	c := New(Options{URL: "ws://unused/ws", Token: "tok", HTTPBase: api.URL}, Handlers{})
	defer c.Close()

	_, err := c.FetchHistory(context.Background(), "conv-1", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "not a participant")
}

// A reconnect rebuilds the view from history, but messages already rendered
// before the drop must not reach the handler a second time.
func TestClientReconnectRendersEachMessageOnce(t *testing.T) {
	var histMu sync.Mutex
	history := []wire.MessagePayload{
		{ID: 2, ConversationID: "conv-1", SenderID: "bob", Content: "two"},
		{ID: 1, ConversationID: "conv-1", SenderID: "bob", Content: "one"},
	}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		histMu.Lock()
		msgs := append([]wire.MessagePayload(nil), history...)
		histMu.Unlock()
		_ = json.NewEncoder(w).Encode(wire.HistoryPage{Messages: msgs, Page: 1, PerPage: 50})
	}))
	t.Cleanup(api.Close)

	dropFirst := make(chan struct{})
	f := newFakeServer(t, func(t *testing.T, conn *websocket.Conn, dial int) {
		defer conn.Close()
		for {
			var in wire.Inbound
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if in.Type == wire.TypeJoinConversation {
				_ = conn.WriteJSON(wire.JoinedFrame{Type: wire.TypeJoined, ConversationID: in.ConversationID})
				if dial == 1 {
					// The first connection is dropped on cue so the client
					// has to recover.
					<-dropFirst
					return
				}
			}
		}
	})

	var mu sync.Mutex
	var rendered []int64
	c := New(Options{
		URL:         f.wsURL(),
		Token:       "tok",
		HTTPBase:    api.URL,
		BackoffBase: 10 * time.Millisecond,
	}, Handlers{
		OnMessage: func(m wire.MessagePayload) {
			mu.Lock()
			rendered = append(rendered, m.ID)
			mu.Unlock()
		},
	})
	defer c.Close()

	c.Join("conv-1")
	c.Connect(context.Background())

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rendered) == 2
	}, "initial bootstrap never rendered")

	// A message lands while the socket is down; it is only in history.
	histMu.Lock()
	history = append([]wire.MessagePayload{{ID: 3, ConversationID: "conv-1", SenderID: "bob", Content: "three"}}, history...)
	histMu.Unlock()
	close(dropFirst)

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rendered) >= 3
	}, "client never recovered the missed message")
	assert.GreaterOrEqual(t, f.dialCount(), 2)

	mu.Lock()
	assert.Equal(t, []int64{1, 2, 3}, rendered, "each message renders exactly once, in order")
	mu.Unlock()
}
