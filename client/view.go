package client

import (
	"sort"
	"sync"
	"time"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// SendState tracks an optimistic local send through its lifecycle.
type SendState int

const (
	// SendPending means the frame went out and no echo came back yet.
	SendPending SendState = iota
	// SendConfirmed means the authoritative echo replaced the entry.
	SendConfirmed
	// SendFailed means the send timed out or the connection dropped before
	// confirmation. The user can retry it; the server may or may not have
	// persisted the original, and the echo's id dedups either way.
	SendFailed
)

// PendingSend is a locally queued message awaiting its server echo.
type PendingSend struct {
	ClientID string
	Content  string
	QueuedAt time.Time
	State    SendState
}

// View holds one conversation as the client displays it: confirmed messages
// in id order, optimistic sends appended after them, and out-of-order
// arrivals held back until the gap is filled.
//
// Confirmed messages are keyed by their per-conversation id. lastSeq is the
// highest id applied without a gap above baseline; anything older than
// baseline lives in history pages not yet fetched.
type View struct {
	mu sync.Mutex

	conversationID string
	baseline       int64
	lastSeq        int64
	byID           map[int64]wire.MessagePayload
	held           map[int64]wire.MessagePayload
	pending        []*PendingSend
	hasMore        bool
}

// NewView creates an empty view for the conversation.
func NewView(conversationID string) *View {
	return &View{
		conversationID: conversationID,
		byID:           make(map[int64]wire.MessagePayload),
		held:           make(map[int64]wire.MessagePayload),
	}
}

// ConversationID returns the conversation this view tracks.
func (v *View) ConversationID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conversationID
}

// Bootstrap loads the newest history page, replacing confirmed state.
// Pending sends survive; a later echo or retry resolves them.
func (v *View) Bootstrap(page wire.HistoryPage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.byID = make(map[int64]wire.MessagePayload)
	v.held = make(map[int64]wire.MessagePayload)
	v.baseline = 0
	v.lastSeq = 0
	v.hasMore = page.HasMore

	for _, m := range page.Messages {
		v.byID[m.ID] = m
		if m.ID > v.lastSeq {
			v.lastSeq = m.ID
		}
		if v.baseline == 0 || m.ID-1 < v.baseline {
			v.baseline = m.ID - 1
		}
	}
}

// Apply ingests a realtime message frame. It reports whether the message
// landed out of order, meaning the caller should backfill the gap.
//
// A frame carrying the view's own client id always resolves the matching
// pending entry, even when the id itself is a duplicate.
func (v *View) Apply(m wire.MessagePayload) (gap bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if m.ClientID != "" {
		v.resolveLocked(m.ClientID)
	}

	if m.ID <= v.lastSeq {
		if _, seen := v.byID[m.ID]; seen {
			return false
		}
		// Inside the known range but missing: an older-page message arriving
		// late. Keep it, the range stays contiguous.
		v.byID[m.ID] = m
		return false
	}

	if m.ID == v.lastSeq+1 {
		v.byID[m.ID] = m
		v.lastSeq = m.ID
		v.drainHeldLocked()
		return false
	}

	v.held[m.ID] = m
	return true
}

// Merge folds a backfill page into the view and releases any held messages
// the page made contiguous.
func (v *View) Merge(page wire.HistoryPage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, m := range page.Messages {
		v.byID[m.ID] = m
		if m.ID-1 < v.baseline {
			v.baseline = m.ID - 1
		}
	}
	v.advanceLocked()
	v.drainHeldLocked()
}

// advanceLocked walks lastSeq forward over whatever ids are present.
func (v *View) advanceLocked() {
	for {
		if _, ok := v.byID[v.lastSeq+1]; !ok {
			return
		}
		v.lastSeq++
	}
}

func (v *View) drainHeldLocked() {
	for {
		m, ok := v.held[v.lastSeq+1]
		if !ok {
			return
		}
		delete(v.held, v.lastSeq+1)
		v.byID[m.ID] = m
		v.lastSeq = m.ID
	}
}

// Queue registers an optimistic send and returns its entry.
func (v *View) Queue(clientID, content string) *PendingSend {
	p := &PendingSend{
		ClientID: clientID,
		Content:  content,
		QueuedAt: time.Now(),
		State:    SendPending,
	}
	v.mu.Lock()
	v.pending = append(v.pending, p)
	v.mu.Unlock()
	return p
}

func (v *View) resolveLocked(clientID string) {
	for i, p := range v.pending {
		if p.ClientID == clientID {
			p.State = SendConfirmed
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return
		}
	}
}

// Fail marks the pending entry retryable if it is still unconfirmed.
// It reports whether a state change happened.
func (v *View) Fail(clientID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.pending {
		if p.ClientID == clientID && p.State == SendPending {
			p.State = SendFailed
			return true
		}
	}
	return false
}

// FailAll marks every unconfirmed pending entry retryable. Called when the
// connection drops with sends in flight.
func (v *View) FailAll() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, p := range v.pending {
		if p.State == SendPending {
			p.State = SendFailed
			n++
		}
	}
	return n
}

// Retry re-arms a failed entry for another send attempt. It returns the
// entry, or nil when the id is unknown or not in a failed state.
func (v *View) Retry(clientID string) *PendingSend {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.pending {
		if p.ClientID == clientID && p.State == SendFailed {
			p.State = SendPending
			p.QueuedAt = time.Now()
			return p
		}
	}
	return nil
}

// Discard drops a pending entry entirely.
func (v *View) Discard(clientID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, p := range v.pending {
		if p.ClientID == clientID {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return
		}
	}
}

// Messages returns the confirmed messages in ascending id order.
func (v *View) Messages() []wire.MessagePayload {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]wire.MessagePayload, 0, len(v.byID))
	for _, m := range v.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending returns a snapshot of the optimistic entries, oldest first.
func (v *View) Pending() []PendingSend {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]PendingSend, len(v.pending))
	for i, p := range v.pending {
		out[i] = *p
	}
	return out
}

// LastSeq returns the highest contiguous message id applied so far.
func (v *View) LastSeq() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeq
}

// HasMore reports whether older history pages exist beyond the baseline.
func (v *View) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore
}
