package bidding

import (
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// ValidateBid applies the bidding rules in order against the current auction
// state. lastBid is nil when the auction has no bids yet. A nil return means
// accept; otherwise the error is a *biddingerrors.Rejection.
func ValidateBid(auction models.Auction, lastBid *models.Bid, bidderID string, amount decimal.Decimal, now time.Time) error {
	if !auction.IsOpen(now) {
		return biddingerrors.Reject(biddingerrors.ErrAuctionClosed,
			"auction %s is %s, ends %s", auction.AuctionID, auction.Status, auction.EndTime.UTC().Format(time.RFC3339))
	}

	if lastBid != nil && lastBid.BidderID == bidderID {
		return biddingerrors.Reject(biddingerrors.ErrDuplicateBidder,
			"bidder %s already leads with %s", bidderID, lastBid.Amount.StringFixed(2))
	}

	if floor := auction.MinimumNextBid(); amount.LessThan(floor) {
		return biddingerrors.Reject(biddingerrors.ErrInsufficientAmount,
			"minimum bid is %s", floor.StringFixed(2))
	}

	return nil
}
