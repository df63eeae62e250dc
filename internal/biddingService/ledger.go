package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
	"auction-ledger/internal/repository"
	"auction-ledger/utils"

	"github.com/shopspring/decimal"
)

// AfterCommitFunc runs once a bid is durably committed, while the auction is
// still locked, so calls for one auction happen in commit order.
type AfterCommitFunc func(snapshot models.AuctionSnapshot, bid models.Bid)

// Ledger owns every write to an auction. All writes for one auction are
// serialized by a per-auction lock, and each commit is additionally checked
// against the stored version so writers in other processes cannot interleave.
type Ledger struct {
	repo  repository.AuctionDB
	locks *auctionLocks
	now   func() time.Time
}

// NewLedger creates a ledger over repo using clock as the time source
func NewLedger(repo repository.AuctionDB, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		repo:  repo,
		locks: newAuctionLocks(),
		now:   clock,
	}
}

// commitAttempts bounds how often a write is retried after another process
// committed to the same auction between our load and our commit.
const commitAttempts = 3

// RecordBid validates a bid against the current auction state and, on accept,
// commits the bid together with the new highest bid, bid count and (possibly
// extended) end time. Rejections come back as *biddingerrors.Rejection and
// leave the auction untouched. A commit that loses a version race is
// re-validated against the fresh state, so the loser of two concurrent bids
// is rejected rather than failed.
func (l *Ledger) RecordBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal, afterCommit AfterCommitFunc) (models.AuctionSnapshot, models.Bid, error) {
	unlock := l.locks.Lock(auctionID)
	defer unlock()

	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		var (
			snapshot models.AuctionSnapshot
			bid      models.Bid
		)
		snapshot, bid, err = l.recordOnce(ctx, auctionID, bidderID, amount)
		if errors.Is(err, biddingerrors.ErrVersionConflict) {
			utils.Debug("ledger: bid commit lost a version race", map[string]any{
				"auction_id": auctionID,
				"attempt":    attempt,
			})
			continue
		}
		if err != nil {
			return models.AuctionSnapshot{}, models.Bid{}, err
		}

		if afterCommit != nil {
			afterCommit(snapshot, bid)
		}
		return snapshot, bid, nil
	}

	return models.AuctionSnapshot{}, models.Bid{}, fmt.Errorf("ledger: record bid on auction %s after %d attempts: %w", auctionID, commitAttempts, asPersistence(err))
}

// recordOnce runs one load, validate, commit pass. A version conflict is
// returned as is so the caller can retry.
func (l *Ledger) recordOnce(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (models.AuctionSnapshot, models.Bid, error) {
	auction, err := l.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionSnapshot{}, models.Bid{}, fmt.Errorf("ledger: %w", asPersistence(err))
	}

	var lastBid *models.Bid
	latest, err := l.repo.GetLatestBid(ctx, auctionID)
	switch {
	case err == nil:
		lastBid = &latest
	case errors.Is(err, biddingerrors.ErrNoBids):
	default:
		return models.AuctionSnapshot{}, models.Bid{}, fmt.Errorf("ledger: %w", asPersistence(err))
	}

	now := l.now()
	if err := ValidateBid(auction, lastBid, bidderID, amount, now); err != nil {
		return models.AuctionSnapshot{}, models.Bid{}, err
	}

	bid := models.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Sequence:  auction.BidCount + 1,
		CreatedAt: now.UTC(),
	}

	auction.CurrentHighestBid = amount
	auction.BidCount = bid.Sequence
	extended := ExtendForAntiSnipe(&auction, now)

	committed, err := l.repo.CommitBid(ctx, auction, bid)
	if err != nil {
		return models.AuctionSnapshot{}, models.Bid{}, fmt.Errorf("ledger: record bid on auction %s: %w", auctionID, conflictOrPersistence(err))
	}

	return models.AuctionSnapshot{
		AuctionID:        committed.AuctionID,
		HighestBid:       committed.CurrentHighestBid,
		HighestBidderID:  bid.BidderID,
		EndTime:          committed.EndTime,
		BidCount:         committed.BidCount,
		AntiSnipeSeconds: committed.AntiSnipeSeconds,
		Extended:         extended,
	}, bid, nil
}

// Apply runs mutate on the current auction under the auction lock and stores
// the result. When mutate returns an error nothing is written. A version
// conflict reloads the auction and runs mutate again.
func (l *Ledger) Apply(ctx context.Context, auctionID string, mutate func(auction *models.Auction, now time.Time) error) (models.Auction, error) {
	unlock := l.locks.Lock(auctionID)
	defer unlock()

	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		var updated models.Auction
		updated, err = l.applyOnce(ctx, auctionID, mutate)
		if errors.Is(err, biddingerrors.ErrVersionConflict) {
			continue
		}
		return updated, err
	}
	return models.Auction{}, fmt.Errorf("ledger: update auction %s after %d attempts: %w", auctionID, commitAttempts, asPersistence(err))
}

func (l *Ledger) applyOnce(ctx context.Context, auctionID string, mutate func(auction *models.Auction, now time.Time) error) (models.Auction, error) {
	auction, err := l.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("ledger: %w", asPersistence(err))
	}

	if err := mutate(&auction, l.now()); err != nil {
		return models.Auction{}, err
	}

	updated, err := l.repo.UpdateAuction(ctx, auction)
	if err != nil {
		return models.Auction{}, fmt.Errorf("ledger: update auction %s: %w", auctionID, conflictOrPersistence(err))
	}
	return updated, nil
}

// conflictOrPersistence keeps version conflicts retryable and marks every
// other write failure as a persistence failure
func conflictOrPersistence(err error) error {
	if errors.Is(err, biddingerrors.ErrVersionConflict) {
		return err
	}
	return asPersistence(err)
}

// asPersistence marks storage errors as persistence failures. Lookup misses
// keep their own identity.
func asPersistence(err error) error {
	if errors.Is(err, biddingerrors.ErrAuctionNotFound) || errors.Is(err, biddingerrors.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", biddingerrors.ErrPersistence, err)
}
