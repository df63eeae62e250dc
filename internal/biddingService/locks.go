package bidding

import "sync"

// auctionLocks hands out one mutex per auction id. Entries are dropped once
// no goroutine holds or waits for them.
type auctionLocks struct {
	mu    sync.Mutex
	locks map[string]*auctionLock
}

type auctionLock struct {
	mu   sync.Mutex
	refs int
}

func newAuctionLocks() *auctionLocks {
	return &auctionLocks{locks: make(map[string]*auctionLock)}
}

// Lock blocks until the caller owns auctionID and returns the release func
func (l *auctionLocks) Lock(auctionID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[auctionID]
	if !ok {
		lk = &auctionLock{}
		l.locks[auctionID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, auctionID)
		}
		l.mu.Unlock()
	}
}

func (l *auctionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
