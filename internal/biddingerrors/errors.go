package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionExists   = errors.New("auction already exists")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrUserNoBids      = errors.New("user has not placed any bids")
	ErrVersionConflict = errors.New("auction was modified concurrently")
)

// Bid rejection reasons
var (
	ErrAuctionClosed      = errors.New("auction is not accepting bids")
	ErrDuplicateBidder    = errors.New("bidder already holds the highest bid")
	ErrInsufficientAmount = errors.New("bid amount below the minimum allowed")
)

// business logic errors
var (
	ErrInvalidBid        = errors.New("invalid bid")
	ErrInvalidAuction    = errors.New("invalid auction")
	ErrInvalidTransition = errors.New("invalid auction status transition")
	ErrNotSeller         = errors.New("only the seller may change this auction")
)

// infrastructure errors
var (
	ErrPersistence = errors.New("persistence failure")
	ErrPublish     = errors.New("publish failure")
)

// Rejection is returned by bid validation. It is an expected outcome, not a
// failure, and unwraps to one of the rejection reason sentinels.
type Rejection struct {
	Reason error
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Reason }

// Code is the stable machine-readable name of the rejection reason
func (r *Rejection) Code() string {
	return ReasonCode(r.Reason)
}

// Reject builds a Rejection for reason with a formatted detail
func Reject(reason error, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonCode maps a rejection sentinel to its wire name
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrAuctionClosed):
		return "auction_closed"
	case errors.Is(err, ErrDuplicateBidder):
		return "duplicate_bidder"
	case errors.Is(err, ErrInsufficientAmount):
		return "insufficient_amount"
	default:
		return ""
	}
}

// AsRejection extracts a Rejection from err's chain
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
