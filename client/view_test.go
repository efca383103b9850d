package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

func msg(id int64) wire.MessagePayload {
	return wire.MessagePayload{ID: id, ConversationID: "conv-1", SenderID: "bob", Content: "m"}
}

func page(ids ...int64) wire.HistoryPage {
	p := wire.HistoryPage{}
	for _, id := range ids {
		p.Messages = append(p.Messages, msg(id))
	}
	return p
}

func seqs(msgs []wire.MessagePayload) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestViewAppliesInOrder(t *testing.T) {
	v := NewView("conv-1")
	assert.False(t, v.Apply(msg(1)))
	assert.False(t, v.Apply(msg(2)))
	assert.False(t, v.Apply(msg(3)))
	assert.Equal(t, []int64{1, 2, 3}, seqs(v.Messages()))
	assert.Equal(t, int64(3), v.LastSeq())
}

func TestViewDropsDuplicates(t *testing.T) {
	v := NewView("conv-1")
	v.Apply(msg(1))
	v.Apply(msg(2))
	v.Apply(msg(2))
	v.Apply(msg(1))
	assert.Equal(t, []int64{1, 2}, seqs(v.Messages()))
}

func TestViewHoldsGapUntilFilled(t *testing.T) {
	v := NewView("conv-1")
	v.Apply(msg(1))

	gap := v.Apply(msg(4))
	assert.True(t, gap, "out-of-order arrival must request backfill")
	assert.Equal(t, []int64{1}, seqs(v.Messages()), "held message must not display")

	v.Merge(page(3, 2))
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs(v.Messages()))
	assert.Equal(t, int64(4), v.LastSeq())
}

func TestViewBootstrapFromHistoryPage(t *testing.T) {
	v := NewView("conv-1")
	p := page(10, 9, 8)
	p.HasMore = true
	v.Bootstrap(p)

	assert.Equal(t, []int64{8, 9, 10}, seqs(v.Messages()))
	assert.Equal(t, int64(10), v.LastSeq())
	assert.True(t, v.HasMore())

	// Realtime continues from the bootstrap point.
	assert.False(t, v.Apply(msg(11)))
	assert.Equal(t, int64(11), v.LastSeq())
}

func TestViewEchoConfirmsPending(t *testing.T) {
	v := NewView("conv-1")
	v.Queue("cid-1", "hello")
	require.Len(t, v.Pending(), 1)

	echo := msg(1)
	echo.ClientID = "cid-1"
	echo.SenderID = "alice"
	v.Apply(echo)

	assert.Empty(t, v.Pending(), "echo must replace the optimistic entry")
	assert.Equal(t, []int64{1}, seqs(v.Messages()))
}

func TestViewEchoConfirmsEvenWhenDuplicate(t *testing.T) {
	v := NewView("conv-1")
	// Fabric copy lands first, without the client id.
	v.Apply(msg(1))

	v.Queue("cid-1", "hello")
	echo := msg(1)
	echo.ClientID = "cid-1"
	v.Apply(echo)

	assert.Empty(t, v.Pending())
	assert.Equal(t, []int64{1}, seqs(v.Messages()))
}

func TestViewFailAndRetry(t *testing.T) {
	v := NewView("conv-1")
	v.Queue("cid-1", "hello")

	assert.True(t, v.Fail("cid-1"))
	assert.False(t, v.Fail("cid-1"), "already failed")
	require.Len(t, v.Pending(), 1)
	assert.Equal(t, SendFailed, v.Pending()[0].State)

	p := v.Retry("cid-1")
	require.NotNil(t, p)
	assert.Equal(t, SendPending, p.State)

	assert.Nil(t, v.Retry("cid-1"), "pending entries are not retryable")
	assert.Nil(t, v.Retry("unknown"))
}

func TestViewFailDoesNotTouchConfirmed(t *testing.T) {
	v := NewView("conv-1")
	v.Queue("cid-1", "hello")
	echo := msg(1)
	echo.ClientID = "cid-1"
	v.Apply(echo)

	assert.False(t, v.Fail("cid-1"), "confirmed sends never flip to failed")
}

func TestViewFailAllOnDisconnect(t *testing.T) {
	v := NewView("conv-1")
	v.Queue("cid-1", "one")
	v.Queue("cid-2", "two")
	v.Fail("cid-1")

	assert.Equal(t, 1, v.FailAll(), "only unconfirmed pending entries flip")
	for _, p := range v.Pending() {
		assert.Equal(t, SendFailed, p.State)
	}
}

func TestViewDiscard(t *testing.T) {
	v := NewView("conv-1")
	v.Queue("cid-1", "one")
	v.Discard("cid-1")
	assert.Empty(t, v.Pending())
}

func TestViewLateArrivalInsideKnownRange(t *testing.T) {
	v := NewView("conv-1")
	p := page(10, 9, 8)
	p.HasMore = true
	v.Bootstrap(p)

	// An older-page message delivered late slots in without a gap signal.
	assert.False(t, v.Apply(msg(5)))
	assert.Equal(t, []int64{5, 8, 9, 10}, seqs(v.Messages()))
	assert.Equal(t, int64(10), v.LastSeq())
}
