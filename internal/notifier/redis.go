package notifier

import (
	"context"
	"fmt"

	"auction-ledger/utils"

	rd "github.com/redis/go-redis/v9"
)

// RedisBroker is a Publisher over Redis PUBLISH/SUBSCRIBE, so every API
// instance connected to the same Redis sees every auction's events.
type RedisBroker struct {
	rdb    *rd.Client
	prefix string
	buffer int
}

// NewRedisBroker creates a broker publishing to prefix+auctionID channels
func NewRedisBroker(rdb *rd.Client, prefix string, buffer int) *RedisBroker {
	if buffer <= 0 {
		buffer = 1
	}
	return &RedisBroker{rdb: rdb, prefix: prefix, buffer: buffer}
}

// Channel returns the Redis channel name of an auction
func (b *RedisBroker) Channel(auctionID string) string {
	return b.prefix + auctionID
}

// Publish sends payload to the auction's channel
func (b *RedisBroker) Publish(ctx context.Context, auctionID string, payload []byte) error {
	if err := b.rdb.Publish(ctx, b.Channel(auctionID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.Channel(auctionID), err)
	}
	return nil
}

// Subscribe joins the auction's channel and waits for Redis to confirm it
func (b *RedisBroker) Subscribe(ctx context.Context, auctionID string) (*Subscription, error) {
	channel := b.Channel(auctionID)
	ps := b.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, b.buffer)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for msg := range msgs {
			select {
			case out <- []byte(msg.Payload):
			default:
				utils.Debug("redis broker: dropped event for slow watcher", map[string]any{"channel": channel})
			}
		}
	}()

	return newSubscription(ctx, out, func() {
		if err := ps.Close(); err != nil {
			utils.Warn("redis broker: unsubscribe failed", map[string]any{
				"channel": channel,
				"error":   err.Error(),
			})
		}
	}), nil
}

// Ping checks the Redis connection
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}
