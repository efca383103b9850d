package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/pubsub/port"
)

// RedisPubSub is an adapter that satisfies the port.PubSub interface using
// Redis Pub/Sub channels. Redis delivery is at-least-once from the consumer's
// perspective (resubscribes after a broker hiccup can replay nothing or race
// with publishes), which matches the fabric contract: consumers dedup by
// message id.
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub constructs a RedisPubSub from an existing client.
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// NewRedisPubSubFromEnv constructs a RedisPubSub using the REDIS_URL
// environment variable.
func NewRedisPubSubFromEnv() (*RedisPubSub, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil, errors.New("pubsub: REDIS_URL environment variable is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("pubsub: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("pubsub: ping: %w", err)
	}
	return &RedisPubSub{client: c}, nil
}

// Ensure interface compliance at compile time
var _ port.PubSub = (*RedisPubSub)(nil)

func (r *RedisPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	return r.client.Publish(ctx, topic, payload).Err()
}

func (r *RedisPubSub) Subscribe(ctx context.Context, pattern string, h port.Handler) (func(), error) {
	sub := r.client.PSubscribe(ctx, pattern)
	// Force the subscription to be established before returning so callers
	// cannot publish into a window where nothing is listening.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("pubsub: subscribe %q: %w", pattern, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			h(msg.Channel, []byte(msg.Payload))
		}
	}()

	stop := func() {
		_ = sub.Close()
		<-done
	}
	return stop, nil
}

func (r *RedisPubSub) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPubSub) Close() error {
	return r.client.Close()
}
