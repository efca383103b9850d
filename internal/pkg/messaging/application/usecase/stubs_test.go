package usecase

import (
	"context"
	"sync"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
)

// stubRepo implements the repository port with overridable functions so each
// test only wires the calls it cares about.
type stubRepo struct {
	findOrCreate func(ctx context.Context, a, b string) (messaging.Conversation, bool, error)
	getConv      func(ctx context.Context, id string) (messaging.Conversation, error)
	isPart       func(ctx context.Context, convID, userID string) (bool, error)
	save         func(ctx context.Context, m messaging.Message) (messaging.Message, error)
	page         func(ctx context.Context, convID string, page, perPage int) ([]messaging.Message, bool, error)
	markRead     func(ctx context.Context, convID, readerID string) (int64, error)
}

func (s *stubRepo) FindOrCreateConversation(ctx context.Context, a, b string) (messaging.Conversation, bool, error) {
	return s.findOrCreate(ctx, a, b)
}

func (s *stubRepo) GetConversation(ctx context.Context, id string) (messaging.Conversation, error) {
	return s.getConv(ctx, id)
}

func (s *stubRepo) IsParticipant(ctx context.Context, convID, userID string) (bool, error) {
	return s.isPart(ctx, convID, userID)
}

func (s *stubRepo) ListConversationIDs(context.Context, string) ([]string, error) { return nil, nil }

func (s *stubRepo) ListConversations(context.Context, string) ([]messaging.ConversationSummary, error) {
	return nil, nil
}

func (s *stubRepo) SaveMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	return s.save(ctx, m)
}

func (s *stubRepo) GetMessagesPage(ctx context.Context, convID string, page, perPage int) ([]messaging.Message, bool, error) {
	return s.page(ctx, convID, page, perPage)
}

func (s *stubRepo) MarkConversationRead(ctx context.Context, convID, readerID string) (int64, error) {
	return s.markRead(ctx, convID, readerID)
}

func (s *stubRepo) MarkDelivered(context.Context, string, int64) error { return nil }

func (s *stubRepo) UnreadCount(context.Context, string) (int64, error) { return 0, nil }

func (s *stubRepo) SaveNotification(context.Context, messaging.Notification) (string, error) {
	return "", nil
}

func (s *stubRepo) ListNotifications(context.Context, string) ([]messaging.Notification, error) {
	return nil, nil
}

// capturePublisher records every payload published per conversation.
type capturePublisher struct {
	mu        sync.Mutex
	err       error
	published map[string][][]byte
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{published: make(map[string][][]byte)}
}

func (p *capturePublisher) Publish(_ context.Context, conversationID string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.published[conversationID] = append(p.published[conversationID], payload)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) count(conversationID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published[conversationID])
}

func (p *capturePublisher) last(conversationID string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := p.published[conversationID]
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

// captureDispatcher records dispatched messages.
type captureDispatcher struct {
	mu   sync.Mutex
	sent []messaging.Message
}

func (d *captureDispatcher) MessageSent(_ context.Context, _ messaging.Conversation, msg messaging.Message) {
	d.mu.Lock()
	d.sent = append(d.sent, msg)
	d.mu.Unlock()
}
