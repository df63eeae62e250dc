package helpers

import (
	"time"

	"auction-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionID string          `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type CreateAuctionRequest struct {
	Title            string              `json:"title" binding:"required"`
	Description      string              `json:"description"`
	StartingPrice    decimal.Decimal     `json:"starting_price"`
	ReservePrice     decimal.NullDecimal `json:"reserve_price"`
	MinimumIncrement decimal.NullDecimal `json:"minimum_increment"`
	EndTime          time.Time           `json:"end_time"`
	AntiSnipeSeconds *int                `json:"anti_snipe_seconds" binding:"omitempty,min=0"`
}

// Params converts the request into service input, applying defaults
func (r CreateAuctionRequest) Params() models.AuctionParams {
	p := models.AuctionParams{
		Title:            r.Title,
		Description:      r.Description,
		StartingPrice:    r.StartingPrice,
		ReservePrice:     r.ReservePrice,
		MinimumIncrement: models.DefaultMinimumIncrement,
		EndTime:          r.EndTime,
		AntiSnipeSeconds: models.DefaultAntiSnipeSeconds,
	}
	if r.MinimumIncrement.Valid {
		p.MinimumIncrement = r.MinimumIncrement.Decimal
	}
	if r.AntiSnipeSeconds != nil {
		p.AntiSnipeSeconds = *r.AntiSnipeSeconds
	}
	return p
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Sequence  int             `json:"sequence"`
	CreatedAt string          `json:"created_at"`
}

type PlaceBidResponse struct {
	Accepted bool                    `json:"accepted"`
	Reason   string                  `json:"reason,omitempty"`
	Bid      *BidResponse            `json:"bid,omitempty"`
	Auction  *models.AuctionSnapshot `json:"auction,omitempty"`
}

// NewBidResponse formats a stored bid for the API
func NewBidResponse(bid models.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		Sequence:  bid.Sequence,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewPlaceBidResponse formats a bid submission result for the API
func NewPlaceBidResponse(result models.BidResult) PlaceBidResponse {
	resp := PlaceBidResponse{
		Accepted: result.Accepted,
		Reason:   result.Reason,
		Auction:  result.Snapshot,
	}
	if result.Bid != nil {
		b := NewBidResponse(*result.Bid)
		resp.Bid = &b
	}
	return resp
}
