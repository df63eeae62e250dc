package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventBidPlaced     = "bid_placed"
	EventAuctionClosed = "auction_closed"
)

// BidPlacedEvent is published to an auction's watchers for every accepted bid
type BidPlacedEvent struct {
	Type              string          `json:"type"`
	AuctionID         string          `json:"auction_id"`
	Amount            decimal.Decimal `json:"amount"`
	Bidder            string          `json:"bidder"`
	EndTime           time.Time       `json:"end_time"`
	BidCount          int             `json:"bid_count"`
	CurrentHighestBid decimal.Decimal `json:"current_highest_bid"`
	AntiSnipeSeconds  int             `json:"anti_snipe_seconds"`
}

// NewBidPlacedEvent builds the event from the committed snapshot and bid
func NewBidPlacedEvent(snap AuctionSnapshot, bid Bid) BidPlacedEvent {
	return BidPlacedEvent{
		Type:              EventBidPlaced,
		AuctionID:         snap.AuctionID,
		Amount:            bid.Amount,
		Bidder:            bid.BidderID,
		EndTime:           snap.EndTime.UTC(),
		BidCount:          snap.BidCount,
		CurrentHighestBid: snap.HighestBid,
		AntiSnipeSeconds:  snap.AntiSnipeSeconds,
	}
}

// AuctionClosedEvent is published once when an active auction runs out of time
type AuctionClosedEvent struct {
	Type       string              `json:"type"`
	AuctionID  string              `json:"auction_id"`
	Status     AuctionStatus       `json:"status"`
	Winner     string              `json:"winner,omitempty"`
	FinalPrice decimal.NullDecimal `json:"final_price"`
	BidCount   int                 `json:"bid_count"`
}
