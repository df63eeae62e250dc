package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	// DefaultAntiSnipeSeconds applies when an auction is created without an explicit window
	DefaultAntiSnipeSeconds = 30
)

// DefaultMinimumIncrement applies when an auction is created without an explicit increment
var DefaultMinimumIncrement = decimal.NewFromInt(1)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	StatusDraft     AuctionStatus = "draft"
	StatusActive    AuctionStatus = "active"
	StatusPaused    AuctionStatus = "paused"
	StatusEnded     AuctionStatus = "ended"
	StatusSold      AuctionStatus = "sold"
	StatusCancelled AuctionStatus = "cancelled"
)

var transitions = map[AuctionStatus][]AuctionStatus{
	StatusDraft:  {StatusActive, StatusCancelled},
	StatusActive: {StatusPaused, StatusEnded, StatusSold, StatusCancelled},
	StatusPaused: {StatusActive, StatusCancelled},
}

// Valid reports whether s is one of the known statuses
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusEnded, StatusSold, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s
func (s AuctionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusSold || s == StatusCancelled
}

// CanTransition reports whether the state machine allows s -> to
func (s AuctionStatus) CanTransition(to AuctionStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Auction is the aggregate owned by the ledger. CurrentHighestBid is a cached
// value that always equals the highest accepted bid, or StartingPrice before any bid.
type Auction struct {
	AuctionID         string              `json:"auction_id" gorm:"primaryKey;size:36"`
	SellerID          string              `json:"seller_id" gorm:"size:64;not null;index"`
	Title             string              `json:"title" gorm:"size:255;not null"`
	Description       string              `json:"description"`
	StartingPrice     decimal.Decimal     `json:"starting_price" gorm:"type:varchar(32);not null"`
	ReservePrice      decimal.NullDecimal `json:"reserve_price" gorm:"type:varchar(32)"`
	CurrentHighestBid decimal.Decimal     `json:"current_highest_bid" gorm:"type:varchar(32);not null"`
	MinimumIncrement  decimal.Decimal     `json:"minimum_increment" gorm:"type:varchar(32);not null"`
	StartTime         time.Time           `json:"start_time"`
	EndTime           time.Time           `json:"end_time" gorm:"not null;index"`
	AntiSnipeSeconds  int                 `json:"anti_snipe_seconds" gorm:"not null"`
	Status            AuctionStatus       `json:"status" gorm:"size:16;not null;index"`
	BidCount          int                 `json:"bid_count" gorm:"not null;default:0"`
	WinnerID          string              `json:"winner_id,omitempty" gorm:"size:64"`
	FinalPrice        decimal.NullDecimal `json:"final_price" gorm:"type:varchar(32)"`
	Version           int64               `json:"-" gorm:"not null;default:0"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (Auction) TableName() string { return "auctions" }

// MinimumNextBid returns the smallest amount the next bid may carry
func (a Auction) MinimumNextBid() decimal.Decimal {
	base := a.CurrentHighestBid
	if a.BidCount == 0 {
		base = a.StartingPrice
	}
	return base.Add(a.MinimumIncrement)
}

// IsOpen reports whether the auction accepts bids at now
func (a Auction) IsOpen(now time.Time) bool {
	return a.Status == StatusActive && now.Before(a.EndTime)
}

// Bid represents an accepted bid. Sequence is the auction's bid count right
// after this bid was accepted, so it orders bids of one auction.
type Bid struct {
	BidID     string          `json:"bid_id" gorm:"primaryKey;size:36"`
	AuctionID string          `json:"auction_id" gorm:"size:36;not null;uniqueIndex:idx_bid_auction_seq"`
	BidderID  string          `json:"bidder_id" gorm:"size:64;not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:varchar(32);not null"`
	Sequence  int             `json:"sequence" gorm:"not null;uniqueIndex:idx_bid_auction_seq"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Bid) TableName() string { return "bids" }

// AuctionSnapshot is the auction state produced by an accepted bid
type AuctionSnapshot struct {
	AuctionID        string          `json:"auction_id"`
	HighestBid       decimal.Decimal `json:"current_highest_bid"`
	HighestBidderID  string          `json:"highest_bidder_id"`
	EndTime          time.Time       `json:"end_time"`
	BidCount         int             `json:"bid_count"`
	AntiSnipeSeconds int             `json:"anti_snipe_seconds"`
	Extended         bool            `json:"extended"`
}

// BidResult is the outcome of a bid submission. Reason is set only when the
// bid was rejected.
type BidResult struct {
	Accepted bool             `json:"accepted"`
	Reason   string           `json:"reason,omitempty"`
	Message  string           `json:"message,omitempty"`
	Snapshot *AuctionSnapshot `json:"auction,omitempty"`
	Bid      *Bid             `json:"bid,omitempty"`
}

// AuctionParams carries the seller-supplied fields of a new auction
type AuctionParams struct {
	Title            string
	Description      string
	StartingPrice    decimal.Decimal
	ReservePrice     decimal.NullDecimal
	MinimumIncrement decimal.Decimal
	EndTime          time.Time
	AntiSnipeSeconds int
}

// AuctionFilter narrows an auction listing. Zero fields match everything.
type AuctionFilter struct {
	Status    AuctionStatus
	SellerID  string
	WinnerID  string
	EndsAfter time.Time
}

// Matches reports whether a passes every field set in f
func (f AuctionFilter) Matches(a Auction) bool {
	switch {
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.SellerID != "" && a.SellerID != f.SellerID:
		return false
	case f.WinnerID != "" && a.WinnerID != f.WinnerID:
		return false
	case !f.EndsAfter.IsZero() && !a.EndTime.After(f.EndsAfter):
		return false
	}
	return true
}
