package redisdocs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// expiredKeyPattern matches keyspace notifications for expired keys on any
// database. Requires notify-keyspace-events to include "Ex".
const expiredKeyPattern = "__keyevent@*__:expired"

// ExpiryFeed delivers the names of expired keys matching a prefix.
type ExpiryFeed struct {
	pubsub *redis.PubSub
	keys   chan string
	done   chan struct{}
}

// EnableExpiryNotifications turns on expired-key events server-side. It is
// additive-safe to call on shared instances that already set other flags.
func (s *Store) EnableExpiryNotifications(ctx context.Context) error {
	vals, err := s.rdb.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		return fmt.Errorf("config get notify-keyspace-events: %w", err)
	}
	current := vals["notify-keyspace-events"]
	if strings.ContainsRune(current, 'E') && strings.ContainsRune(current, 'x') {
		return nil
	}
	if err := s.rdb.ConfigSet(ctx, "notify-keyspace-events", current+"Ex").Err(); err != nil {
		return fmt.Errorf("config set notify-keyspace-events: %w", err)
	}
	return nil
}

// SubscribeExpired opens the expired-key feed filtered by key prefix. The
// feed stays open until Close is called or ctx is cancelled.
func (s *Store) SubscribeExpired(ctx context.Context, prefix string) (*ExpiryFeed, error) {
	pubsub := s.rdb.PSubscribe(ctx, expiredKeyPattern)
	// Force the subscription before we report the feed as live.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe expired keys: %w", err)
	}

	feed := &ExpiryFeed{
		pubsub: pubsub,
		keys:   make(chan string, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(feed.keys)
		ch := pubsub.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
		for {
			select {
			case <-ctx.Done():
				return
			case <-feed.done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !strings.HasPrefix(msg.Payload, prefix) {
					continue
				}
				select {
				case feed.keys <- msg.Payload:
				case <-ctx.Done():
					return
				case <-feed.done:
					return
				}
			}
		}
	}()

	return feed, nil
}

// Keys returns the channel of expired key names. Closed when the feed stops.
func (f *ExpiryFeed) Keys() <-chan string { return f.keys }

// Close stops the feed and the underlying subscription.
func (f *ExpiryFeed) Close() error {
	close(f.done)
	return f.pubsub.Close()
}
