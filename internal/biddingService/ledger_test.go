package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
	"auction-ledger/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func seedAuction(t *testing.T, repo repository.AuctionDB, a models.Auction) {
	t.Helper()
	require.NoError(t, repo.CreateAuction(context.Background(), a))
}

func TestLedger_RecordBid_AntiSnipeScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := repository.NewMemoryRepo()

	a := activeAuction(now)
	a.EndTime = now.Add(10 * time.Second)
	seedAuction(t, repo, a)

	ledger := NewLedger(repo, fixedClock(now))

	// equal to the starting price is not enough for the first bid
	_, _, err := ledger.RecordBid(ctx, "a1", "user1", decimal.NewFromInt(100), nil)
	require.ErrorIs(t, err, biddingerrors.ErrInsufficientAmount)

	snap, bid, err := ledger.RecordBid(ctx, "a1", "user1", decimal.NewFromInt(110), nil)
	require.NoError(t, err)
	require.True(t, snap.Extended)
	require.True(t, snap.EndTime.Equal(now.Add(30*time.Second)))
	require.True(t, snap.HighestBid.Equal(decimal.NewFromInt(110)))
	require.Equal(t, "user1", snap.HighestBidderID)
	require.Equal(t, 1, snap.BidCount)
	require.Equal(t, 1, bid.Sequence)
	require.Equal(t, now, bid.CreatedAt)

	_, _, err = ledger.RecordBid(ctx, "a1", "user1", decimal.NewFromInt(130), nil)
	require.ErrorIs(t, err, biddingerrors.ErrDuplicateBidder)

	_, _, err = ledger.RecordBid(ctx, "a1", "user2", decimal.RequireFromString("119.99"), nil)
	require.ErrorIs(t, err, biddingerrors.ErrInsufficientAmount)

	snap, _, err = ledger.RecordBid(ctx, "a1", "user2", decimal.NewFromInt(120), nil)
	require.NoError(t, err)
	require.Equal(t, 2, snap.BidCount)

	stored, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 2, stored.BidCount)
	require.True(t, stored.CurrentHighestBid.Equal(decimal.NewFromInt(120)))
	require.True(t, stored.EndTime.Equal(now.Add(30*time.Second)))
}

func TestLedger_RecordBid_RejectionLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := repository.NewMemoryRepo()
	seedAuction(t, repo, activeAuction(now))
	ledger := NewLedger(repo, fixedClock(now))

	before, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)

	called := false
	_, _, err = ledger.RecordBid(ctx, "a1", "user1", decimal.NewFromInt(50), func(models.AuctionSnapshot, models.Bid) { called = true })
	require.Error(t, err)
	require.False(t, called)

	after, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, before, after)

	_, err = repo.GetLatestBid(ctx, "a1")
	require.ErrorIs(t, err, biddingerrors.ErrNoBids)
}

func TestLedger_RecordBid_UnknownAuction(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(repository.NewMemoryRepo(), nil)
	_, _, err := ledger.RecordBid(context.Background(), "missing", "user1", decimal.NewFromInt(10), nil)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	require.False(t, errors.Is(err, biddingerrors.ErrPersistence))
}

func TestLedger_RecordBid_PersistenceFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name      string
		mockSetup func(m *repository.MockAuctionDB)
	}{
		{
			name: "load_fails",
			mockSetup: func(m *repository.MockAuctionDB) {
				m.EXPECT().GetAuction(gomock.Any(), "a1").Return(models.Auction{}, errors.New("disk gone"))
			},
		},
		{
			name: "latest_bid_fails",
			mockSetup: func(m *repository.MockAuctionDB) {
				m.EXPECT().GetAuction(gomock.Any(), "a1").Return(activeAuction(now), nil)
				m.EXPECT().GetLatestBid(gomock.Any(), "a1").Return(models.Bid{}, errors.New("timeout"))
			},
		},
		{
			name: "commit_fails",
			mockSetup: func(m *repository.MockAuctionDB) {
				m.EXPECT().GetAuction(gomock.Any(), "a1").Return(activeAuction(now), nil)
				m.EXPECT().GetLatestBid(gomock.Any(), "a1").Return(models.Bid{}, biddingerrors.ErrNoBids)
				m.EXPECT().CommitBid(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.Auction{}, errors.New("write failed"))
			},
		},
		{
			name: "conflict_on_every_attempt",
			mockSetup: func(m *repository.MockAuctionDB) {
				m.EXPECT().GetAuction(gomock.Any(), "a1").Return(activeAuction(now), nil).Times(commitAttempts)
				m.EXPECT().GetLatestBid(gomock.Any(), "a1").Return(models.Bid{}, biddingerrors.ErrNoBids).Times(commitAttempts)
				m.EXPECT().CommitBid(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.Auction{}, biddingerrors.ErrVersionConflict).Times(commitAttempts)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRepo := repository.NewMockAuctionDB(ctrl)
			tc.mockSetup(mockRepo)
			ledger := NewLedger(mockRepo, fixedClock(now))

			called := false
			_, _, err := ledger.RecordBid(ctx, "a1", "user1", decimal.NewFromInt(110), func(models.AuctionSnapshot, models.Bid) { called = true })
			require.ErrorIs(t, err, biddingerrors.ErrPersistence)
			require.False(t, called, "nothing is broadcast for a failed commit")
		})
	}
}

func TestLedger_RecordBid_CommitsMutatedAuction(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	mockRepo := repository.NewMockAuctionDB(ctrl)
	a := activeAuction(now)
	a.EndTime = now.Add(5 * time.Second)
	a.Version = 4

	mockRepo.EXPECT().GetAuction(gomock.Any(), "a1").Return(a, nil)
	mockRepo.EXPECT().GetLatestBid(gomock.Any(), "a1").Return(models.Bid{}, biddingerrors.ErrNoBids)
	mockRepo.EXPECT().CommitBid(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got models.Auction, bid models.Bid) (models.Auction, error) {
			require.Equal(t, int64(4), got.Version)
			require.Equal(t, 1, got.BidCount)
			require.True(t, got.CurrentHighestBid.Equal(decimal.NewFromInt(110)))
			require.True(t, got.EndTime.Equal(now.Add(30*time.Second)))
			require.Equal(t, 1, bid.Sequence)
			require.NotEmpty(t, bid.BidID)
			got.Version++
			return got, nil
		})

	ledger := NewLedger(mockRepo, fixedClock(now))
	snap, _, err := ledger.RecordBid(context.Background(), "a1", "user1", decimal.NewFromInt(110), nil)
	require.NoError(t, err)
	require.True(t, snap.Extended)
}

func TestLedger_RecordBid_ConcurrentEqualBids(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	seedAuction(t, repo, activeAuction(time.Now()))
	ledger := NewLedger(repo, nil)

	const bidders = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []string
		reasons  = map[string]int{}
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bidder := fmt.Sprintf("user%d", i)
			_, _, err := ledger.RecordBid(ctx, "a1", bidder, decimal.NewFromInt(110), nil)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted = append(accepted, bidder)
				return
			}
			reasons[biddingerrors.ReasonCode(err)]++
		}(i)
	}
	wg.Wait()

	require.Len(t, accepted, 1)
	require.Equal(t, bidders-1, reasons["insufficient_amount"])

	stored, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.BidCount)

	latest, err := repo.GetLatestBid(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, accepted[0], latest.BidderID)
}

func TestLedger_RecordBid_ConcurrentOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	seedAuction(t, repo, activeAuction(time.Now()))
	ledger := NewLedger(repo, nil)

	var (
		wg        sync.WaitGroup
		published []models.AuctionSnapshot
	)
	// afterCommit runs under the auction lock, so no extra locking is needed here
	afterCommit := func(snap models.AuctionSnapshot, _ models.Bid) {
		published = append(published, snap)
	}

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := decimal.NewFromInt(int64(110 + 10*i))
			_, _, _ = ledger.RecordBid(ctx, "a1", fmt.Sprintf("user%d", i), amount, afterCommit)
		}(i)
	}
	wg.Wait()

	stored, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.NotEmpty(t, published)
	require.Len(t, published, stored.BidCount)

	for i, snap := range published {
		require.Equal(t, i+1, snap.BidCount, "events must follow commit order")
		if i > 0 {
			require.True(t, snap.HighestBid.GreaterThan(published[i-1].HighestBid), "highest bid must strictly increase")
		}
	}
	require.True(t, stored.CurrentHighestBid.Equal(published[len(published)-1].HighestBid))

	bids, err := repo.GetBidsByAuction(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, bids, stored.BidCount)
}

func TestLedger_Apply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := repository.NewMemoryRepo()
	seedAuction(t, repo, activeAuction(now))
	ledger := NewLedger(repo, fixedClock(now))

	updated, err := ledger.Apply(ctx, "a1", func(a *models.Auction, at time.Time) error {
		require.Equal(t, now, at)
		a.Status = models.StatusPaused
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPaused, updated.Status)

	boom := errors.New("refused")
	_, err = ledger.Apply(ctx, "a1", func(a *models.Auction, _ time.Time) error {
		a.Status = models.StatusCancelled
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, models.StatusPaused, stored.Status)

	_, err = ledger.Apply(ctx, "missing", func(*models.Auction, time.Time) error { return nil })
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}

// pausingRepo holds the first GetLatestBid call until release is closed, so a
// test can let another writer commit between this writer's load and commit
type pausingRepo struct {
	repository.AuctionDB
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newPausingRepo(inner repository.AuctionDB) *pausingRepo {
	return &pausingRepo{AuctionDB: inner, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (r *pausingRepo) GetLatestBid(ctx context.Context, auctionID string) (models.Bid, error) {
	bid, err := r.AuctionDB.GetLatestBid(ctx, auctionID)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return bid, err
}

// Two ledgers stand in for two processes sharing one store
func TestLedger_RecordBid_SharedStoreRace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		lateAmount     int64
		expectAccepted bool
		expectedErr    error
		expectedCount  int
	}{
		{name: "equal_bid_loses_with_rejection", lateAmount: 110, expectedErr: biddingerrors.ErrInsufficientAmount, expectedCount: 1},
		{name: "higher_bid_is_revalidated_and_accepted", lateAmount: 130, expectAccepted: true, expectedCount: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			now := time.Now().UTC()
			shared := repository.NewMemoryRepo()
			seedAuction(t, shared, activeAuction(now))

			paused := newPausingRepo(shared)
			first := NewLedger(shared, fixedClock(now))
			second := NewLedger(paused, fixedClock(now))

			type outcome struct {
				snap models.AuctionSnapshot
				err  error
			}
			done := make(chan outcome, 1)
			go func() {
				snap, _, err := second.RecordBid(ctx, "a1", "user2", decimal.NewFromInt(tc.lateAmount), nil)
				done <- outcome{snap: snap, err: err}
			}()

			<-paused.loaded
			_, _, err := first.RecordBid(ctx, "a1", "user1", decimal.NewFromInt(110), nil)
			require.NoError(t, err)
			close(paused.release)

			res := <-done
			require.False(t, errors.Is(res.err, biddingerrors.ErrPersistence), "a lost race is not a storage failure: %v", res.err)
			if tc.expectAccepted {
				require.NoError(t, res.err)
				require.Equal(t, 2, res.snap.BidCount)
			} else {
				require.ErrorIs(t, res.err, tc.expectedErr)
				_, ok := biddingerrors.AsRejection(res.err)
				require.True(t, ok)
			}

			stored, err := shared.GetAuction(ctx, "a1")
			require.NoError(t, err)
			require.Equal(t, tc.expectedCount, stored.BidCount)
			bids, err := shared.GetBidsByAuction(ctx, "a1")
			require.NoError(t, err)
			require.Len(t, bids, tc.expectedCount)
		})
	}
}

func TestLedger_Apply_RetriesVersionConflict(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	mockRepo := repository.NewMockAuctionDB(ctrl)
	gomock.InOrder(
		mockRepo.EXPECT().GetAuction(gomock.Any(), "a1").Return(activeAuction(now), nil),
		mockRepo.EXPECT().UpdateAuction(gomock.Any(), gomock.Any()).Return(models.Auction{}, biddingerrors.ErrVersionConflict),
		mockRepo.EXPECT().GetAuction(gomock.Any(), "a1").Return(activeAuction(now), nil),
		mockRepo.EXPECT().UpdateAuction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a models.Auction) (models.Auction, error) {
				a.Version++
				return a, nil
			}),
	)

	ledger := NewLedger(mockRepo, fixedClock(now))
	calls := 0
	updated, err := ledger.Apply(context.Background(), "a1", func(a *models.Auction, _ time.Time) error {
		calls++
		a.Status = models.StatusPaused
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls, "mutate runs again on the reloaded auction")
	require.Equal(t, models.StatusPaused, updated.Status)
}
