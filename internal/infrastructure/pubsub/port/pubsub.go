package port

import "context"

// Handler receives every payload published to a subscribed topic. Delivery is
// at-least-once; handlers must treat repeated payloads as idempotent.
type Handler func(topic string, payload []byte)

// PubSub is the fabric used to fan events out across server processes. A
// payload published on one process must reach subscribers held open by any
// other process, so adapters are expected to be backed by an external broker
// rather than in-process state.
//
// Topics are opaque strings; the messaging layer derives them from
// conversation ids.
type PubSub interface {
	// Publish sends payload to every current subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers h for all topics matching pattern (broker glob
	// syntax, e.g. "room.*"). The returned stop function cancels the
	// subscription and blocks until the delivery goroutine has exited.
	Subscribe(ctx context.Context, pattern string, h Handler) (stop func(), err error)

	// Ping verifies connectivity with the broker.
	Ping(ctx context.Context) error

	// Close releases broker resources.
	Close() error
}
