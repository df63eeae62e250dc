package bidding

import (
	"context"
	"time"

	"auction-ledger/utils"
)

// Closer periodically ends auctions whose end time has passed
type Closer struct {
	service  *BiddingService
	interval time.Duration
}

// NewCloser creates a closer that sweeps every interval
func NewCloser(service *BiddingService, interval time.Duration) *Closer {
	return &Closer{service: service, interval: interval}
}

// Run sweeps until ctx is cancelled
func (c *Closer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	utils.Info("auction closer started", map[string]any{"interval": c.interval.String()})
	for {
		select {
		case <-ctx.Done():
			utils.Info("auction closer stopped", nil)
			return
		case <-ticker.C:
			if _, err := c.service.CloseExpired(ctx); err != nil && ctx.Err() == nil {
				utils.Warn("auction closer sweep failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
