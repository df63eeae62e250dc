package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAmountsEncodeAsNumbers(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(BidPlacedEvent{
		Type:              EventBidPlaced,
		AuctionID:         "a1",
		Amount:            decimal.RequireFromString("110.50"),
		CurrentHighestBid: decimal.RequireFromString("110.50"),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, 110.5, decoded["amount"])
	require.Equal(t, 110.5, decoded["current_highest_bid"])

	var bid Bid
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"120.25"}`), &bid))
	require.True(t, bid.Amount.Equal(decimal.RequireFromString("120.25")), "quoted amounts still decode")
}

func TestAuctionFilter_Matches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	auction := Auction{
		SellerID: "seller1",
		WinnerID: "user1",
		Status:   StatusActive,
		EndTime:  now.Add(time.Minute),
	}

	tests := []struct {
		name   string
		filter AuctionFilter
		want   bool
	}{
		{name: "empty_filter", filter: AuctionFilter{}, want: true},
		{name: "status_match", filter: AuctionFilter{Status: StatusActive}, want: true},
		{name: "status_mismatch", filter: AuctionFilter{Status: StatusSold}, want: false},
		{name: "seller_match", filter: AuctionFilter{SellerID: "seller1"}, want: true},
		{name: "seller_mismatch", filter: AuctionFilter{SellerID: "seller2"}, want: false},
		{name: "winner_mismatch", filter: AuctionFilter{WinnerID: "user2"}, want: false},
		{name: "still_running", filter: AuctionFilter{Status: StatusActive, EndsAfter: now}, want: true},
		{name: "ends_exactly_at_cutoff", filter: AuctionFilter{EndsAfter: now.Add(time.Minute)}, want: false},
		{name: "already_expired", filter: AuctionFilter{EndsAfter: now.Add(time.Hour)}, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, tc.filter.Matches(auction))
		})
	}
}
