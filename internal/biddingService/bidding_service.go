package bidding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
	"auction-ledger/internal/repository"
	"auction-ledger/utils"

	"github.com/shopspring/decimal"
)

// BidNotifier receives committed auction changes for fan-out to watchers.
// Implementations are best effort and must not fail the caller.
type BidNotifier interface {
	BidPlaced(ctx context.Context, snapshot models.AuctionSnapshot, bid models.Bid)
	AuctionClosed(ctx context.Context, auction models.Auction)
}

type noopNotifier struct{}

func (noopNotifier) BidPlaced(context.Context, models.AuctionSnapshot, models.Bid) {}
func (noopNotifier) AuctionClosed(context.Context, models.Auction)                 {}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock replaces time.Now, mainly for tests
func WithClock(clock func() time.Time) Option {
	return func(s *BiddingService) {
		s.now = clock
	}
}

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo     repository.AuctionDB
	notifier BidNotifier
	ledger   *Ledger
	now      func() time.Time
}

// NewBiddingService creates a new BiddingService instance. A nil notifier
// disables broadcasting.
func NewBiddingService(repo repository.AuctionDB, notifier BidNotifier, opts ...Option) *BiddingService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &BiddingService{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = NewLedger(repo, s.now)
	return s
}

// SubmitBid runs a bid through the ledger. Rule violations are reported in
// the result with Accepted=false and a nil error; the error is reserved for
// bad input, unknown auctions and persistence failures.
func (s *BiddingService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (models.BidResult, error) {
	if auctionID == "" || bidderID == "" {
		return models.BidResult{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return models.BidResult{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if !amount.Equal(amount.Round(2)) {
		return models.BidResult{}, fmt.Errorf("service: %w - amount has more than two decimal places", biddingerrors.ErrInvalidBid)
	}

	snapshot, bid, err := s.ledger.RecordBid(ctx, auctionID, bidderID, amount, func(snap models.AuctionSnapshot, bid models.Bid) {
		s.notifier.BidPlaced(ctx, snap, bid)
	})
	if err != nil {
		if rejection, ok := biddingerrors.AsRejection(err); ok {
			return models.BidResult{
				Accepted: false,
				Reason:   rejection.Code(),
				Message:  rejection.Error(),
			}, nil
		}
		return models.BidResult{}, fmt.Errorf("service: failed to record bid on auction %s by bidder %s: %w", auctionID, bidderID, err)
	}

	return models.BidResult{
		Accepted: true,
		Snapshot: &snapshot,
		Bid:      &bid,
	}, nil
}

// CreateAuction stores a new draft auction owned by sellerID
func (s *BiddingService) CreateAuction(ctx context.Context, sellerID string, params models.AuctionParams) (models.Auction, error) {
	if err := s.validateAuctionParams(sellerID, params); err != nil {
		return models.Auction{}, err
	}

	now := s.now().UTC()
	auction := models.Auction{
		AuctionID:         utils.GenerateID(),
		SellerID:          sellerID,
		Title:             strings.TrimSpace(params.Title),
		Description:       params.Description,
		StartingPrice:     params.StartingPrice,
		ReservePrice:      params.ReservePrice,
		CurrentHighestBid: params.StartingPrice,
		MinimumIncrement:  params.MinimumIncrement,
		EndTime:           params.EndTime.UTC(),
		AntiSnipeSeconds:  params.AntiSnipeSeconds,
		Status:            models.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction: %w", err)
	}
	return auction, nil
}

func (s *BiddingService) validateAuctionParams(sellerID string, p models.AuctionParams) error {
	switch {
	case sellerID == "":
		return fmt.Errorf("service: %w - missing seller", biddingerrors.ErrInvalidAuction)
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("service: %w - empty title", biddingerrors.ErrInvalidAuction)
	case !p.StartingPrice.IsPositive():
		return fmt.Errorf("service: %w - starting price must be positive", biddingerrors.ErrInvalidAuction)
	case !p.MinimumIncrement.IsPositive():
		return fmt.Errorf("service: %w - minimum increment must be positive", biddingerrors.ErrInvalidAuction)
	case p.ReservePrice.Valid && p.ReservePrice.Decimal.LessThan(p.StartingPrice):
		return fmt.Errorf("service: %w - reserve price below starting price", biddingerrors.ErrInvalidAuction)
	case p.AntiSnipeSeconds < 0:
		return fmt.Errorf("service: %w - negative anti-snipe window", biddingerrors.ErrInvalidAuction)
	case !p.EndTime.After(s.now()):
		return fmt.Errorf("service: %w - end time must be in the future", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

// UpdateAuctionStatus moves an auction through the seller-controlled part of
// the lifecycle: activate (draft -> active), pause, resume (paused -> active)
// and cancel. Ending and selling happen only through CloseExpired.
func (s *BiddingService) UpdateAuctionStatus(ctx context.Context, auctionID, sellerID string, to models.AuctionStatus) (models.Auction, error) {
	if auctionID == "" || sellerID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID or sellerID", biddingerrors.ErrInvalidAuction)
	}
	if to != models.StatusActive && to != models.StatusPaused && to != models.StatusCancelled {
		return models.Auction{}, fmt.Errorf("service: %w - sellers cannot set status %q", biddingerrors.ErrInvalidTransition, to)
	}

	updated, err := s.ledger.Apply(ctx, auctionID, func(a *models.Auction, now time.Time) error {
		if a.SellerID != sellerID {
			return biddingerrors.ErrNotSeller
		}
		if !a.Status.CanTransition(to) {
			return fmt.Errorf("%w - %s to %s", biddingerrors.ErrInvalidTransition, a.Status, to)
		}
		if to == models.StatusActive && a.Status == models.StatusDraft {
			if !now.Before(a.EndTime) {
				return fmt.Errorf("%w - end time already passed", biddingerrors.ErrInvalidTransition)
			}
			if a.StartTime.IsZero() {
				a.StartTime = now.UTC()
			}
		}
		a.Status = to
		return nil
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to set auction %s to %s: %w", auctionID, to, err)
	}

	utils.Info("auction status changed", map[string]any{
		"auction_id": auctionID,
		"status":     updated.Status,
	})
	return updated, nil
}

// GetAuction returns the current state of an auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListAuctions returns the auctions matching filter, newest first
func (s *BiddingService) ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("service: %w - unknown status %q", biddingerrors.ErrInvalidAuction, filter.Status)
	}

	auctions, err := s.repo.ListAuctions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// ListLiveAuctions returns active auctions that are still accepting bids.
// Auctions past their end time are left out even before the closer ends them.
func (s *BiddingService) ListLiveAuctions(ctx context.Context) ([]models.Auction, error) {
	return s.ListAuctions(ctx, models.AuctionFilter{
		Status:    models.StatusActive,
		EndsAfter: s.now(),
	})
}

// GetBidsForAuction returns all bids for a specific auction, newest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetBidsByBidder returns all bids a user has placed, newest first
func (s *BiddingService) GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for bidder %s: %w", bidderID, err)
	}
	return bids, nil
}

var errStillRunning = errors.New("auction still running")

// CloseExpired ends every active auction whose end time has passed. An auction
// with bids that meet the reserve is sold to the latest bidder, otherwise it
// ends unsold. It returns the number of auctions closed.
func (s *BiddingService) CloseExpired(ctx context.Context) (int, error) {
	active, err := s.repo.ListAuctions(ctx, models.AuctionFilter{Status: models.StatusActive})
	if err != nil {
		return 0, fmt.Errorf("service: failed to list active auctions: %w", err)
	}

	now := s.now()
	closed := 0
	var errs []error
	for _, candidate := range active {
		if now.Before(candidate.EndTime) {
			continue
		}

		auction, err := s.ledger.Apply(ctx, candidate.AuctionID, func(a *models.Auction, now time.Time) error {
			// a late bid may have extended the auction since the listing
			if a.Status != models.StatusActive || now.Before(a.EndTime) {
				return errStillRunning
			}
			return s.settle(ctx, a)
		})
		if errors.Is(err, errStillRunning) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			utils.Error("failed to close auction", map[string]any{
				"auction_id": candidate.AuctionID,
				"error":      err.Error(),
			})
			continue
		}

		closed++
		utils.Info("auction closed", map[string]any{
			"auction_id": auction.AuctionID,
			"status":     auction.Status,
			"winner_id":  auction.WinnerID,
			"bid_count":  auction.BidCount,
		})
		s.notifier.AuctionClosed(ctx, auction)
	}

	if len(errs) > 0 {
		return closed, fmt.Errorf("service: failed to close %d auctions: %w", len(errs), errors.Join(errs...))
	}
	return closed, nil
}

// settle decides between sold and ended for an expired auction
func (s *BiddingService) settle(ctx context.Context, a *models.Auction) error {
	if a.BidCount == 0 {
		a.Status = models.StatusEnded
		return nil
	}
	if a.ReservePrice.Valid && a.CurrentHighestBid.LessThan(a.ReservePrice.Decimal) {
		a.Status = models.StatusEnded
		return nil
	}

	latest, err := s.repo.GetLatestBid(ctx, a.AuctionID)
	if err != nil {
		return fmt.Errorf("settle auction %s: %w", a.AuctionID, err)
	}
	a.Status = models.StatusSold
	a.WinnerID = latest.BidderID
	a.FinalPrice = decimal.NewNullDecimal(latest.Amount)
	return nil
}
