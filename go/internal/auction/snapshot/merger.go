// Package snapshot combines the pulled auction aggregate with pushed partial deltas.
package snapshot

import (
	"time"

	"github.com/mcdev12/bidlive/go/internal/models"
)

// Fields are the live fields of an auction that pushes can touch.
type Fields struct {
	CurrentPrice int64                `json:"currentPrice"`
	BidCount     int64                `json:"bidCount"`
	EndAt        time.Time            `json:"endAt"`
	Status       models.AuctionStatus `json:"status"`
}

// FieldsOf returns the live fields of an aggregate.
func FieldsOf(agg models.AuctionAggregate) Fields {
	return Fields{
		CurrentPrice: agg.CurrentPrice,
		BidCount:     agg.BidCount,
		EndAt:        agg.EndAt,
		Status:       agg.Status,
	}
}

// Merge overlays delta onto agg. CurrentPrice and BidCount take the larger of the
// two values; EndAt and Status take the delta's value outright. Fields the delta
// omits come from agg unchanged. An empty delta is a no-op.
func Merge(agg models.AuctionAggregate, delta models.SnapshotDelta) Fields {
	f := FieldsOf(agg)
	if delta.CurrentPrice != nil {
		f.CurrentPrice = max(f.CurrentPrice, *delta.CurrentPrice)
	}
	if delta.BidCount != nil {
		f.BidCount = max(f.BidCount, *delta.BidCount)
	}
	if delta.EndAt != nil && !delta.EndAt.IsZero() {
		f.EndAt = *delta.EndAt
	}
	if delta.Status != nil && delta.Status.IsValid() {
		f.Status = *delta.Status
	}
	return f
}

// Tracker remembers the highest CurrentPrice and BidCount displayed for one
// auction view so that neither ever goes backwards, whatever order the
// pulled and pushed sources arrive in.
type Tracker struct {
	price int64
	count int64
}

// Clamp raises f's numeric fields to the high-water marks and records the result.
func (t *Tracker) Clamp(f Fields) Fields {
	t.price = max(t.price, f.CurrentPrice)
	t.count = max(t.count, f.BidCount)
	f.CurrentPrice = t.price
	f.BidCount = t.count
	return f
}

// Reset forgets the high-water marks. Call it when the viewed auction changes.
func (t *Tracker) Reset() {
	t.price, t.count = 0, 0
}
