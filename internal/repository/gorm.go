package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormRepo is a durable AuctionDB backed by gorm. Bid commits run in a single
// transaction guarded by the auction's version column.
type GormRepo struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a sqlite database and migrates the schema
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite has a single writer; one connection also keeps ":memory:" databases alive
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Auction{}, &models.Bid{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewGormRepo wraps an opened and migrated gorm database
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// Close releases the underlying connection pool
func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateAuction inserts a new auction row
func (r *GormRepo) CreateAuction(ctx context.Context, auction models.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction id", biddingerrors.ErrInvalidAuction)
	}
	if err := r.db.WithContext(ctx).Create(&auction).Error; err != nil {
		if errorsLikeUnique(err) {
			return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionExists)
		}
		return fmt.Errorf("create auction %s: %w: %v", auction.AuctionID, biddingerrors.ErrPersistence, err)
	}
	return nil
}

// GetAuction loads one auction row
func (r *GormRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return models.Auction{}, fmt.Errorf("get auction %s: %w: %v", auctionID, biddingerrors.ErrPersistence, err)
	}
	return auction, nil
}

// ListAuctions returns the auctions matching filter, newest first
func (r *GormRepo) ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	q := r.db.WithContext(ctx)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SellerID != "" {
		q = q.Where("seller_id = ?", filter.SellerID)
	}
	if filter.WinnerID != "" {
		q = q.Where("winner_id = ?", filter.WinnerID)
	}
	if !filter.EndsAfter.IsZero() {
		// end times are stored in UTC, so the text comparison orders correctly
		q = q.Where("end_time > ?", filter.EndsAfter.UTC())
	}
	var list []models.Auction
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list auctions: %w: %v", biddingerrors.ErrPersistence, err)
	}
	sortAuctions(list)
	return list, nil
}

// UpdateAuction writes every mutable column if the version still matches
func (r *GormRepo) UpdateAuction(ctx context.Context, auction models.Auction) (models.Auction, error) {
	updated, err := updateVersioned(r.db.WithContext(ctx), auction)
	if errors.Is(err, biddingerrors.ErrVersionConflict) {
		if _, getErr := r.GetAuction(ctx, auction.AuctionID); getErr != nil {
			return models.Auction{}, fmt.Errorf("update auction: %w", getErr)
		}
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("update auction %s: %w", auction.AuctionID, err)
	}
	return updated, nil
}

// CommitBid inserts the bid and updates the auction in one transaction
func (r *GormRepo) CommitBid(ctx context.Context, auction models.Auction, bid models.Bid) (models.Auction, error) {
	if bid.AuctionID != auction.AuctionID {
		return models.Auction{}, fmt.Errorf("commit bid %s: %w - auction mismatch", bid.BidID, biddingerrors.ErrInvalidBid)
	}

	var updated models.Auction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bid).Error; err != nil {
			if errorsLikeUnique(err) {
				return fmt.Errorf("%w - sequence %d taken", biddingerrors.ErrVersionConflict, bid.Sequence)
			}
			return fmt.Errorf("%w: insert bid: %v", biddingerrors.ErrPersistence, err)
		}
		var err error
		updated, err = updateVersioned(tx, auction)
		return err
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("commit bid for auction %s: %w", auction.AuctionID, err)
	}
	return updated, nil
}

// GetLatestBid returns the bid with the highest sequence for an auction
func (r *GormRepo) GetLatestBid(ctx context.Context, auctionID string) (models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("sequence DESC").
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Bid{}, fmt.Errorf("get latest bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
		}
		return models.Bid{}, fmt.Errorf("get latest bid for auction %s: %w: %v", auctionID, biddingerrors.ErrPersistence, err)
	}
	return bid, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *GormRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("get bids: %w", err)
	}

	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("sequence DESC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w: %v", auctionID, biddingerrors.ErrPersistence, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetBidsByBidder returns all bids a bidder has placed, newest first
func (r *GormRepo) GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	var bids []models.Bid
	if err := r.db.WithContext(ctx).Where("bidder_id = ?", bidderID).Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("get bids for bidder %s: %w: %v", bidderID, biddingerrors.ErrPersistence, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for bidder %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}
	sortBids(bids)
	return bids, nil
}

// updateVersioned bumps the version of auction if the row still holds the old one
func updateVersioned(db *gorm.DB, auction models.Auction) (models.Auction, error) {
	expected := auction.Version
	auction.Version = expected + 1
	auction.UpdatedAt = time.Now().UTC()

	res := db.Model(&models.Auction{}).
		Where("auction_id = ? AND version = ?", auction.AuctionID, expected).
		Updates(map[string]any{
			"title":               auction.Title,
			"description":         auction.Description,
			"starting_price":      auction.StartingPrice,
			"reserve_price":       auction.ReservePrice,
			"current_highest_bid": auction.CurrentHighestBid,
			"minimum_increment":   auction.MinimumIncrement,
			"start_time":          auction.StartTime,
			"end_time":            auction.EndTime,
			"anti_snipe_seconds":  auction.AntiSnipeSeconds,
			"status":              auction.Status,
			"bid_count":           auction.BidCount,
			"winner_id":           auction.WinnerID,
			"final_price":         auction.FinalPrice,
			"version":             auction.Version,
			"updated_at":          auction.UpdatedAt,
		})
	if res.Error != nil {
		return models.Auction{}, fmt.Errorf("%w: update auction: %v", biddingerrors.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Auction{}, fmt.Errorf("%w - version %d is stale", biddingerrors.ErrVersionConflict, expected)
	}
	return auction, nil
}

// errorsLikeUnique reports whether err comes from a unique constraint
func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
