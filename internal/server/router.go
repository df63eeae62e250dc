package server

import (
	"net/http"

	"auction-ledger/internal/models"
	"auction-ledger/internal/notifier"
	handler "auction-ledger/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface, pub notifier.Publisher) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(IdentityMiddleware)      // caller identity from the gateway
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService)
	watchHandler := handler.NewWatchHandler(biddingService, pub)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.SubmitBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.POST("", biddingHandler.CreateAuctionHandler)
		auctions.GET("/live", biddingHandler.LiveAuctionsHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.POST("/:auction_id/activate", biddingHandler.ChangeStatusHandler(models.StatusActive))
		auctions.POST("/:auction_id/resume", biddingHandler.ChangeStatusHandler(models.StatusActive))
		auctions.POST("/:auction_id/pause", biddingHandler.ChangeStatusHandler(models.StatusPaused))
		auctions.POST("/:auction_id/cancel", biddingHandler.ChangeStatusHandler(models.StatusCancelled))
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsBySellerHandler)
		users.GET("/:user_id/won", biddingHandler.GetWonAuctionsHandler)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/auctions/:auction_id", watchHandler.WatchAuctionHandler)
	}

	return router
}
