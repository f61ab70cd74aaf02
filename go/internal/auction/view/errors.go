package view

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAuction is returned when no auction is being viewed.
	ErrNoAuction = errors.New("no auction open")
	// ErrNotLoaded is returned when a bid is attempted before the auction has loaded.
	ErrNotLoaded = errors.New("auction not loaded yet")
	// ErrBiddingClosed is returned when the auction's status does not accept bids.
	ErrBiddingClosed = errors.New("auction is not accepting bids")
	// ErrStopped is returned once the controller's loop has exited.
	ErrStopped = errors.New("view controller stopped")
)

// BelowMinimumError is returned when a bid is lower than the minimum next bid.
type BelowMinimumError struct {
	Amount  int64
	Minimum int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("bid %d is below the minimum of %d", e.Amount, e.Minimum)
}
