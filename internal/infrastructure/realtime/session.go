package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Session owns one live client connection. It holds the authenticated user
// id and coordinates outbound writes via a buffered channel so callers never
// block on a slow socket. A session is safe for concurrent use.
type Session struct {
	ID     string
	UserID string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}

	closeCode   int
	closeReason string
}

// NewSession constructs a Session for the given authenticated user.
func NewSession(userID string, ws *websocket.Conn) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, 128),
		close:  make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per session.
func (s *Session) Start() {
	go s.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer is
// full, the session is closed to keep backpressure bounded.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.close:
		return errors.New("session closed")
	case s.send <- payload:
		return nil
	default:
		s.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("session buffer exceeded")
	}
}

// Closed reports whether the session has been terminated.
func (s *Session) Closed() bool {
	select {
	case <-s.close:
		return true
	default:
		return false
	}
}

// Close terminates the session. The write loop drains frames already queued,
// then sends the close frame and tears down the socket, so a reply enqueued
// just before Close still reaches the client. The send channel stays open: a
// concurrent Send must never panic, it just hits the closed signal and
// returns an error.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		close(s.close)
	})
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.ws.Close()

	for {
		select {
		case <-s.close:
			s.drain()
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(s.closeCode, s.closeReason), time.Now().Add(writeWait))
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

// drain flushes frames buffered before the close signal.
func (s *Session) drain() {
	for {
		select {
		case msg := <-s.send:
			if s.writeMessage(msg) != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) writeMessage(payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) writePing() error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.PingMessage, nil)
}
