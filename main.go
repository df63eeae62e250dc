package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-ledger/internal/biddingService"
	"auction-ledger/internal/config"
	"auction-ledger/internal/models"
	"auction-ledger/internal/notifier"
	"auction-ledger/internal/repository"
	"auction-ledger/internal/server"
	"auction-ledger/utils"

	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Warn("invalid LOG_LEVEL, keeping info", map[string]any{"level": cfg.LogLevel})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := openRepository(cfg)
	defer closeRepo()

	pub, closePub := openPublisher(ctx, cfg)
	defer closePub()

	// closed before the publisher so queued events still go out
	notif := notifier.New(pub,
		notifier.WithPublishTimeout(cfg.PublishTimeout),
		notifier.WithWorkers(cfg.PublishWorkers, cfg.PublishQueue),
	)
	defer notif.Close()

	biddingSvc := bidding.NewBiddingService(repo, notif)

	if cfg.SeedDemo {
		prepopulateAuctions(ctx, biddingSvc)
	}

	go bidding.NewCloser(biddingSvc, cfg.CloserInterval).Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.SetupRouter(biddingSvc, pub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{
			"addr":   cfg.Addr(),
			"store":  cfg.Store,
			"broker": cfg.Broker,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		utils.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
	utils.Info("auction server stopped", nil)
}

// openRepository builds the configured store and its release func
func openRepository(cfg config.Config) (repository.AuctionDB, func()) {
	if cfg.Store == config.StoreMemory {
		return repository.NewMemoryRepo(), func() {}
	}

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		utils.Fatal("failed to open database", map[string]any{"path": cfg.DBPath, "error": err.Error()})
	}
	repo := repository.NewGormRepo(db)
	return repo, func() {
		if err := repo.Close(); err != nil {
			utils.Warn("failed to close database", map[string]any{"error": err.Error()})
		}
	}
}

// openPublisher builds the configured pub/sub transport and its release func
func openPublisher(ctx context.Context, cfg config.Config) (notifier.Publisher, func()) {
	if cfg.Broker == config.BrokerMemory {
		return notifier.NewHub(cfg.SubscriberBuffer), func() {}
	}

	rdb := rd.NewClient(&rd.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	broker := notifier.NewRedisBroker(rdb, cfg.RedisChannelPrefix, cfg.SubscriberBuffer)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := broker.Ping(pingCtx); err != nil {
		// broadcasts are best effort; bidding keeps working without Redis
		utils.Warn("redis unreachable, live updates degraded", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
	}
	return broker, func() { _ = rdb.Close() }
}

// prepopulateAuctions adds a few live sample auctions
func prepopulateAuctions(ctx context.Context, svc *bidding.BiddingService) {
	samples := []models.AuctionParams{
		{Title: "Vintage camera", Description: "Rangefinder, 1960s", StartingPrice: decimal.NewFromInt(100), MinimumIncrement: decimal.NewFromInt(10), AntiSnipeSeconds: 30},
		{Title: "Road bike", Description: "Aluminium frame, size 56", StartingPrice: decimal.NewFromInt(200), MinimumIncrement: decimal.NewFromInt(5), AntiSnipeSeconds: 60},
		{Title: "Oak desk", Description: "Solid oak, two drawers", StartingPrice: decimal.NewFromInt(150), MinimumIncrement: decimal.NewFromInt(1), AntiSnipeSeconds: 0},
	}

	for i, p := range samples {
		p.EndTime = time.Now().Add(time.Duration(i+1) * time.Hour)
		auction, err := svc.CreateAuction(ctx, "demo-seller", p)
		if err != nil {
			utils.Warn("failed to seed auction", map[string]any{"title": p.Title, "error": err.Error()})
			continue
		}
		if _, err := svc.UpdateAuctionStatus(ctx, auction.AuctionID, "demo-seller", models.StatusActive); err != nil {
			utils.Warn("failed to activate seeded auction", map[string]any{"auction_id": auction.AuctionID, "error": err.Error()})
		}
	}
}
