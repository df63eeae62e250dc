package notifier

import (
	"context"
	"sync"
)

//go:generate mockgen -source=publisher.go -destination=mock_publisher.go -package=notifier

// Publisher is a pub/sub transport with one channel per auction id. Delivery
// is at most once: a subscriber that is slow or disconnected misses events.
type Publisher interface {
	Publish(ctx context.Context, auctionID string, payload []byte) error
	Subscribe(ctx context.Context, auctionID string) (*Subscription, error)
}

// Subscription delivers the payloads published to one auction channel. C is
// closed after Close or when the subscribing context ends.
type Subscription struct {
	C <-chan []byte

	once    sync.Once
	release func()
}

func newSubscription(ctx context.Context, c <-chan []byte, release func()) *Subscription {
	sub := &Subscription{C: c, release: release}
	context.AfterFunc(ctx, sub.Close)
	return sub
}

// Close unsubscribes; it is safe to call more than once
func (s *Subscription) Close() {
	s.once.Do(s.release)
}
