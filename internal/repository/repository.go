package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB defines the auction and bid storage interface. CommitBid and
// UpdateAuction are optimistic writes: they succeed only when the stored
// auction still carries the Version of the value passed in, and they return
// the stored auction with its new Version.
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error)
	UpdateAuction(ctx context.Context, auction models.Auction) (models.Auction, error)
	CommitBid(ctx context.Context, auction models.Auction, bid models.Bid) (models.Auction, error)
	GetLatestBid(ctx context.Context, auctionID string) (models.Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu         sync.RWMutex
	auctions   map[string]models.Auction // key: auctionID -> value: auction
	bids       map[string][]models.Bid   // key: auctionID -> value: bids in sequence order
	bidderBids map[string][]models.Bid   // key: bidderID -> value: bids placed by that bidder
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:   make(map[string]models.Auction),
		bids:       make(map[string][]models.Bid),
		bidderBids: make(map[string][]models.Bid),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction id", biddingerrors.ErrInvalidAuction)
	}
	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionExists)
	}
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns the stored auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListAuctions returns the auctions matching filter, newest first
func (r *MemoryRepo) ListAuctions(_ context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if !filter.Matches(a) {
			continue
		}
		out = append(out, a)
	}
	sortAuctions(out)
	return out, nil
}

// UpdateAuction replaces the stored auction if its version still matches
func (r *MemoryRepo) UpdateAuction(_ context.Context, auction models.Auction) (models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(auction); err != nil {
		return models.Auction{}, fmt.Errorf("update auction %s: %w", auction.AuctionID, err)
	}
	auction.Version++
	auction.UpdatedAt = time.Now().UTC()
	r.auctions[auction.AuctionID] = auction
	return auction, nil
}

// CommitBid appends the bid and stores the mutated auction as one unit
func (r *MemoryRepo) CommitBid(_ context.Context, auction models.Auction, bid models.Bid) (models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bid.AuctionID != auction.AuctionID {
		return models.Auction{}, fmt.Errorf("commit bid %s: %w - auction mismatch", bid.BidID, biddingerrors.ErrInvalidBid)
	}
	if err := r.checkVersion(auction); err != nil {
		return models.Auction{}, fmt.Errorf("commit bid for auction %s: %w", auction.AuctionID, err)
	}
	if bid.Sequence != len(r.bids[auction.AuctionID])+1 {
		return models.Auction{}, fmt.Errorf("commit bid for auction %s: %w - sequence %d taken", auction.AuctionID, biddingerrors.ErrVersionConflict, bid.Sequence)
	}

	auction.Version++
	auction.UpdatedAt = time.Now().UTC()
	r.auctions[auction.AuctionID] = auction
	r.bids[auction.AuctionID] = append(r.bids[auction.AuctionID], bid)
	r.bidderBids[bid.BidderID] = append(r.bidderBids[bid.BidderID], bid)
	return auction, nil
}

// GetLatestBid returns the most recently accepted bid of an auction
func (r *MemoryRepo) GetLatestBid(_ context.Context, auctionID string) (models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return models.Bid{}, fmt.Errorf("get latest bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids[len(bids)-1], nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}

	out := make([]models.Bid, len(bids))
	for i, b := range bids {
		out[len(bids)-1-i] = b
	}
	return out, nil
}

// GetBidsByBidder returns all bids a bidder has placed, newest first
func (r *MemoryRepo) GetBidsByBidder(_ context.Context, bidderID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := r.bidderBids[bidderID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for bidder %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}
	out := append([]models.Bid(nil), bids...)
	sortBids(out)
	return out, nil
}

func (r *MemoryRepo) checkVersion(auction models.Auction) error {
	stored, ok := r.auctions[auction.AuctionID]
	if !ok {
		return biddingerrors.ErrAuctionNotFound
	}
	if stored.Version != auction.Version {
		return fmt.Errorf("%w - stored version %d, got %d", biddingerrors.ErrVersionConflict, stored.Version, auction.Version)
	}
	return nil
}

func sortAuctions(auctions []models.Auction) {
	sort.SliceStable(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].AuctionID < auctions[j].AuctionID
		}
		return auctions[i].CreatedAt.After(auctions[j].CreatedAt)
	})
}

func sortBids(bids []models.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
}
