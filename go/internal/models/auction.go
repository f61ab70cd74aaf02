package models

import (
	"strings"
	"time"
)

// AuctionStatus defines the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusReady    AuctionStatus = "READY"
	AuctionStatusRunning  AuctionStatus = "RUNNING"
	AuctionStatusDeadline AuctionStatus = "DEADLINE"
	AuctionStatusEnded    AuctionStatus = "ENDED"
	AuctionStatusSuccess  AuctionStatus = "SUCCESS"
	AuctionStatusFailed   AuctionStatus = "FAILED"
	AuctionStatusCanceled AuctionStatus = "CANCELED"
	AuctionStatusBlocked  AuctionStatus = "BLOCKED"
)

// ParseAuctionStatus normalizes s and reports whether it names a known status.
func ParseAuctionStatus(s string) (AuctionStatus, bool) {
	status := AuctionStatus(strings.ToUpper(strings.TrimSpace(s)))
	return status, status.IsValid()
}

// IsValid reports whether the status is one of the known values.
func (s AuctionStatus) IsValid() bool {
	switch s {
	case AuctionStatusReady, AuctionStatusRunning, AuctionStatusDeadline, AuctionStatusEnded,
		AuctionStatusSuccess, AuctionStatusFailed, AuctionStatusCanceled, AuctionStatusBlocked:
		return true
	}
	return false
}

// IsTerminal reports whether no further bids or extensions can happen.
func (s AuctionStatus) IsTerminal() bool {
	switch s {
	case AuctionStatusEnded, AuctionStatusSuccess, AuctionStatusFailed, AuctionStatusCanceled, AuctionStatusBlocked:
		return true
	}
	return false
}

// CanBid reports whether the auction accepts bids in this state.
func (s AuctionStatus) CanBid() bool {
	return s == AuctionStatusRunning || s == AuctionStatusDeadline
}

// AuctionAggregate is the full server-side representation of one auction.
// It is replaced wholesale by every pulled read.
type AuctionAggregate struct {
	AuctionID    int64         `json:"auctionId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	CurrentPrice int64         `json:"currentPrice"`
	StartPrice   int64         `json:"startPrice"`
	BidCount     int64         `json:"bidCount"`
	Status       AuctionStatus `json:"status"`
	StartAt      time.Time     `json:"startAt"`
	EndAt        time.Time     `json:"endAt"`
	SellerID     int64         `json:"sellerId"`
	Images       []string      `json:"images"`
}

// SnapshotDelta is a partial, advisory update pushed over the live channel.
// A nil field leaves the displayed value untouched.
type SnapshotDelta struct {
	CurrentPrice *int64
	BidCount     *int64
	EndAt        *time.Time
	Status       *AuctionStatus
}

// IsEmpty reports whether the delta carries no fields.
func (d SnapshotDelta) IsEmpty() bool {
	return d.CurrentPrice == nil && d.BidCount == nil && d.EndAt == nil && d.Status == nil
}

// Overlay returns d with every field present in next replacing the one in d.
func (d SnapshotDelta) Overlay(next SnapshotDelta) SnapshotDelta {
	if next.CurrentPrice != nil {
		d.CurrentPrice = next.CurrentPrice
	}
	if next.BidCount != nil {
		d.BidCount = next.BidCount
	}
	if next.EndAt != nil {
		d.EndAt = next.EndAt
	}
	if next.Status != nil {
		d.Status = next.Status
	}
	return d
}
