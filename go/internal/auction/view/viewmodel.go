package view

import (
	"time"

	"github.com/mcdev12/bidlive/go/internal/models"
)

// ViewModel is everything needed to render the viewed auction. It is an
// immutable copy; the controller hands out a fresh one on every change.
type ViewModel struct {
	AuctionID  int64  `json:"auctionId"`
	Generation uint64 `json:"generation"`
	Loaded     bool   `json:"loaded"`

	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	StartPrice  int64     `json:"startPrice"`
	StartAt     time.Time `json:"startAt"`
	SellerID    int64     `json:"sellerId,omitempty"`
	Images      []string  `json:"images,omitempty"`

	CurrentPrice int64                `json:"currentPrice"`
	BidCount     int64                `json:"bidCount"`
	EndAt        time.Time            `json:"endAt"`
	Status       models.AuctionStatus `json:"status,omitempty"`

	RemainingSec   int   `json:"remainingSec"`
	MinimumNextBid int64 `json:"minimumNextBid"`
	CanBid         bool  `json:"canBid"`

	// Bids is newest first and includes the optimistic bid until the server confirms it.
	Bids       []models.BidRecord `json:"bids"`
	PendingBid *models.BidRecord  `json:"pendingBid,omitempty"`

	AggregateError string `json:"aggregateError,omitempty"`
	BidsError      string `json:"bidsError,omitempty"`
}

// Open reports whether an auction is being viewed.
func (vm ViewModel) Open() bool {
	return vm.AuctionID != 0
}
