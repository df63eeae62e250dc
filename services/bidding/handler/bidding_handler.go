package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/internal/models"
	"auction-ledger/services/bidding/helpers"
	"auction-ledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (models.BidResult, error)
	CreateAuction(ctx context.Context, sellerID string, params models.AuctionParams) (models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID, sellerID string, to models.AuctionStatus) (models.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error)
	ListLiveAuctions(ctx context.Context) ([]models.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// SubmitBidHandler handles POST /bids
func (h *BiddingHandler) SubmitBidHandler(c *gin.Context) {
	bidderID, ok := helpers.RequireUser(c, "SubmitBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SubmitBidHandler", err)
		return
	}

	result, err := h.service.SubmitBid(c.Request.Context(), req.AuctionID, bidderID, req.Amount)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("SubmitBidHandler: failed to submit bid", map[string]any{
			"handler":    "SubmitBidHandler",
			"auction_id": req.AuctionID,
			"bidder_id":  bidderID,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.NewPlaceBidResponse(result)
	if !result.Accepted {
		utils.JSONResponse(c, helpers.RejectionStatus(result.Reason), resp, result.Message)
		utils.Info("SubmitBidHandler: bid rejected", map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  bidderID,
			"amount":     req.Amount.String(),
			"reason":     result.Reason,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid accepted")
	helpers.LogSuccess("SubmitBidHandler", "bid accepted", map[string]any{
		"bid_id":     result.Bid.BidID,
		"auction_id": result.Bid.AuctionID,
		"bidder_id":  bidderID,
		"amount":     result.Bid.Amount.String(),
		"bid_count":  result.Snapshot.BidCount,
		"extended":   result.Snapshot.Extended,
	})
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	sellerID, ok := helpers.RequireUser(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), sellerID, req.Params())
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{"seller_id": sellerID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  sellerID,
	})
}

// ChangeStatusHandler returns the handler for POST /auctions/:auction_id/<action>
func (h *BiddingHandler) ChangeStatusHandler(to models.AuctionStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := helpers.RequireUser(c, "ChangeStatusHandler")
		if !ok {
			return
		}

		auctionID := c.Param("auction_id")
		auction, err := h.service.UpdateAuctionStatus(c.Request.Context(), auctionID, sellerID, to)
		if err != nil {
			status, message := helpers.MapErrorToHTTP(err)
			utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
			utils.Warn("ChangeStatusHandler: status change refused", map[string]any{
				"auction_id": auctionID,
				"status":     to,
				"error":      err.Error(),
			})
			return
		}

		utils.JSONResponse(c, http.StatusOK, auction, "auction status updated")
		helpers.LogSuccess("ChangeStatusHandler", "auction status updated", map[string]any{
			"auction_id": auctionID,
			"status":     auction.Status,
		})
	}
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions?status=&seller_id=&winner_id=
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	filter := models.AuctionFilter{
		Status:   models.AuctionStatus(c.Query("status")),
		SellerID: c.Query("seller_id"),
		WinnerID: c.Query("winner_id"),
	}
	auctions, err := h.service.ListAuctions(c.Request.Context(), filter)
	h.respondAuctions(c, "ListAuctionsHandler", auctions, err, map[string]any{
		"status":    filter.Status,
		"seller_id": filter.SellerID,
		"winner_id": filter.WinnerID,
	})
}

// LiveAuctionsHandler handles GET /auctions/live
func (h *BiddingHandler) LiveAuctionsHandler(c *gin.Context) {
	auctions, err := h.service.ListLiveAuctions(c.Request.Context())
	h.respondAuctions(c, "LiveAuctionsHandler", auctions, err, map[string]any{})
}

// GetAuctionsBySellerHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsBySellerHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.ListAuctions(c.Request.Context(), models.AuctionFilter{SellerID: userID})
	h.respondAuctions(c, "GetAuctionsBySellerHandler", auctions, err, map[string]any{"user_id": userID})
}

// GetWonAuctionsHandler handles GET /users/:user_id/won
func (h *BiddingHandler) GetWonAuctionsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.ListAuctions(c.Request.Context(), models.AuctionFilter{
		Status:   models.StatusSold,
		WinnerID: userID,
	})
	h.respondAuctions(c, "GetWonAuctionsHandler", auctions, err, map[string]any{"user_id": userID})
}

func (h *BiddingHandler) respondAuctions(c *gin.Context, handlerName string, auctions []models.Auction, err error, fields map[string]any) {
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		fields["error"] = err.Error()
		utils.Warn(handlerName+": error listing auctions", fields)
		return
	}

	if auctions == nil {
		auctions = []models.Auction{}
	}
	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	fields["count"] = len(auctions)
	helpers.LogSuccess(handlerName, "auctions retrieved successfully", fields)
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.NewBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetBidsByUserHandler handles GET /users/:user_id/bids
func (h *BiddingHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	bids, err := h.service.GetBidsByBidder(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByUserHandler: error retrieving bids", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.NewBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByUserHandler", "bids retrieved successfully", map[string]any{
		"user_id":    userID,
		"bids_count": len(resp),
	})
}
