package bidding

import (
	"time"

	"auction-ledger/internal/models"
)

// ExtendForAntiSnipe pushes the end time to now+AntiSnipeSeconds when an
// accepted bid lands inside the anti-snipe window. It never shortens the
// auction and reports whether the end time moved.
func ExtendForAntiSnipe(auction *models.Auction, now time.Time) bool {
	if auction.AntiSnipeSeconds <= 0 {
		return false
	}

	window := time.Duration(auction.AntiSnipeSeconds) * time.Second
	if auction.EndTime.Sub(now) >= window {
		return false
	}

	extended := now.Add(window)
	if !extended.After(auction.EndTime) {
		return false
	}
	auction.EndTime = extended.UTC()
	return true
}
