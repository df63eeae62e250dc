package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-ledger/internal/biddingerrors"
	"auction-ledger/utils"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the authenticated user id
const IdentityKey = "identity_user_id"

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// CurrentUser returns the identity attached by the identity middleware
func CurrentUser(c *gin.Context) (string, bool) {
	id := c.GetString(IdentityKey)
	return id, id != ""
}

// RequireUser returns the caller's identity or answers 401
func RequireUser(c *gin.Context, handlerName string) (string, bool) {
	id, ok := CurrentUser(c)
	if !ok {
		utils.JSONAbort(c, http.StatusUnauthorized, errors.New("missing user identity"), "authentication required")
		utils.Warn(handlerName+": unauthenticated request", map[string]any{"path": c.Request.URL.Path})
	}
	return id, ok
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrNotSeller):
		return http.StatusForbidden, "only the seller may change this auction"
	case errors.Is(err, biddingerrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid auction status transition"
	case errors.Is(err, biddingerrors.ErrAuctionExists):
		return http.StatusConflict, "auction already exists"
	case errors.Is(err, biddingerrors.ErrAuctionClosed):
		return http.StatusConflict, "auction is not accepting bids"
	case errors.Is(err, biddingerrors.ErrDuplicateBidder):
		return http.StatusConflict, "bidder already holds the highest bid"
	case errors.Is(err, biddingerrors.ErrInsufficientAmount):
		return http.StatusUnprocessableEntity, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrUserNoBids):
		return http.StatusOK, "no bids found for user"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RejectionStatus maps a rejection reason code to an HTTP status
func RejectionStatus(reason string) int {
	switch reason {
	case "insufficient_amount":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
