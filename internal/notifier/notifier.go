package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
	"auction-ledger/utils"
)

const (
	defaultPublishTimeout = 2 * time.Second
	defaultWorkers        = 8
	defaultQueueSize      = 256
)

// Option configures a Notifier
type Option func(*Notifier)

// WithPublishTimeout bounds every single Publish call
func WithPublishTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithWorkers sets the number of publishing goroutines and the events each
// one may hold before new events are dropped
func WithWorkers(workers, queueSize int) Option {
	return func(n *Notifier) {
		if workers > 0 {
			n.workers = workers
		}
		if queueSize > 0 {
			n.queueSize = queueSize
		}
	}
}

type outbound struct {
	ctx       context.Context
	auctionID string
	payload   []byte
}

// Notifier turns committed ledger changes into watcher events. Events are
// encoded and queued by the caller and published by background workers, so a
// slow or unreachable broker never holds up bidding. All events of one
// auction go through the same worker and leave in the order they were queued.
// Publish failures and full queues are logged and swallowed.
type Notifier struct {
	pub       Publisher
	timeout   time.Duration
	workers   int
	queueSize int

	mu     sync.RWMutex
	closed bool
	queues []chan outbound
	wg     sync.WaitGroup
}

// New creates a notifier on top of pub and starts its workers. Call Close to
// flush queued events and stop them.
func New(pub Publisher, opts ...Option) *Notifier {
	n := &Notifier{
		pub:       pub,
		timeout:   defaultPublishTimeout,
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(n)
	}

	n.queues = make([]chan outbound, n.workers)
	for i := range n.queues {
		q := make(chan outbound, n.queueSize)
		n.queues[i] = q
		n.wg.Add(1)
		go n.drain(q)
	}
	return n
}

// BidPlaced queues one bid_placed event for a committed bid
func (n *Notifier) BidPlaced(ctx context.Context, snapshot models.AuctionSnapshot, bid models.Bid) {
	n.enqueue(ctx, snapshot.AuctionID, models.NewBidPlacedEvent(snapshot, bid))
}

// AuctionClosed queues the auction_closed event of a settled auction
func (n *Notifier) AuctionClosed(ctx context.Context, auction models.Auction) {
	n.enqueue(ctx, auction.AuctionID, models.AuctionClosedEvent{
		Type:       models.EventAuctionClosed,
		AuctionID:  auction.AuctionID,
		Status:     auction.Status,
		Winner:     auction.WinnerID,
		FinalPrice: auction.FinalPrice,
		BidCount:   auction.BidCount,
	})
}

// Close stops accepting events and waits until the queued ones are published
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	for _, q := range n.queues {
		close(q)
	}
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *Notifier) enqueue(ctx context.Context, auctionID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logFailure(auctionID, fmt.Errorf("%w: encode event: %w", biddingerrors.ErrPublish, err))
		return
	}

	// the request may be winding down by the time the event goes out
	msg := outbound{ctx: context.WithoutCancel(ctx), auctionID: auctionID, payload: payload}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logFailure(auctionID, fmt.Errorf("%w: notifier closed", biddingerrors.ErrPublish))
		return
	}
	select {
	case n.queues[n.shard(auctionID)] <- msg:
	default:
		n.logFailure(auctionID, fmt.Errorf("%w: publish queue full", biddingerrors.ErrPublish))
	}
}

func (n *Notifier) shard(auctionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(auctionID))
	return int(h.Sum32() % uint32(len(n.queues)))
}

func (n *Notifier) drain(q <-chan outbound) {
	defer n.wg.Done()
	for msg := range q {
		n.publish(msg)
	}
}

func (n *Notifier) publish(msg outbound) {
	pubCtx, cancel := context.WithTimeout(msg.ctx, n.timeout)
	defer cancel()

	if err := n.pub.Publish(pubCtx, msg.auctionID, msg.payload); err != nil {
		n.logFailure(msg.auctionID, fmt.Errorf("%w: %w", biddingerrors.ErrPublish, err))
		return
	}
	utils.Debug("notifier: event published", map[string]any{"auction_id": msg.auctionID})
}

func (n *Notifier) logFailure(auctionID string, err error) {
	utils.Warn("notifier: broadcast dropped", map[string]any{
		"auction_id": auctionID,
		"error":      err.Error(),
	})
}
