package notifier

import (
	"context"
	"sync"

	"auction-ledger/utils"
)

// Hub is an in-process Publisher. Each subscriber owns a buffered channel;
// when the buffer is full the event is dropped for that subscriber only.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	buffer int
}

// NewHub creates a hub whose subscribers buffer up to buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[chan []byte]struct{}),
		buffer: buffer,
	}
}

// Publish fans payload out to the current subscribers of auctionID without blocking
func (h *Hub) Publish(_ context.Context, auctionID string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for ch := range h.subs[auctionID] {
		select {
		case ch <- payload:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		utils.Debug("hub: dropped event for slow watchers", map[string]any{
			"auction_id": auctionID,
			"dropped":    dropped,
		})
	}
	return nil
}

// Subscribe registers a watcher for auctionID until ctx ends or Close is called
func (h *Hub) Subscribe(ctx context.Context, auctionID string) (*Subscription, error) {
	ch := make(chan []byte, h.buffer)

	h.mu.Lock()
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[chan []byte]struct{})
	}
	h.subs[auctionID][ch] = struct{}{}
	h.mu.Unlock()

	return newSubscription(ctx, ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[auctionID], ch)
		if len(h.subs[auctionID]) == 0 {
			delete(h.subs, auctionID)
		}
		// publishers hold the read lock while sending, so closing here is safe
		close(ch)
	}), nil
}

// Subscribers returns the number of live watchers of auctionID
func (h *Hub) Subscribers(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}
