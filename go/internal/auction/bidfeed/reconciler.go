// Package bidfeed merges the authoritative bid history with the viewer's own
// optimistic bid so that each logical bid is shown exactly once.
//
// Duplicate detection is best effort. Without a server-assigned bid id the
// optimistic row is matched on nickname, price and a time window, so two
// different viewers sharing a nickname who bid the same price within the window
// are indistinguishable, and clock skew larger than the window leaves the
// optimistic row visible until the viewed auction changes or the viewer bids again.
package bidfeed

import (
	"time"

	"github.com/mcdev12/bidlive/go/internal/models"
)

// MatchWindow bounds the createdAt distance for a fuzzy match.
const MatchWindow = 15 * time.Second

// Equivalent reports whether a and b are the same logical bid: equal positive
// bid ids, or equal nickname and price created within MatchWindow of each other.
func Equivalent(a, b models.BidRecord) bool {
	if a.BidID > 0 && a.BidID == b.BidID {
		return true
	}
	if a.BidderNickname != b.BidderNickname || a.BidPrice != b.BidPrice {
		return false
	}
	d := a.CreatedAt.Sub(b.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d <= MatchWindow
}

// Reconcile returns the list to display. With no optimistic record, or when
// some authoritative record is equivalent to it, the authoritative list is
// returned unchanged and matched reports whether a match was found. Otherwise
// the optimistic record is prepended to a copy of the list.
func Reconcile(authoritative []models.BidRecord, optimistic *models.BidRecord) (display []models.BidRecord, matched bool) {
	if optimistic == nil {
		return authoritative, false
	}
	for _, rec := range authoritative {
		if Equivalent(rec, *optimistic) {
			return authoritative, true
		}
	}

	display = make([]models.BidRecord, 0, len(authoritative)+1)
	display = append(display, *optimistic)
	display = append(display, authoritative...)
	return display, false
}

// Overlay holds at most one optimistic bid for a view.
// It is not safe for concurrent use; the owning view serializes access.
type Overlay struct {
	pending *models.BidRecord
	seq     int64
}

// Place replaces any pending record with a new optimistic bid. When the write
// API echoed a server bid id it is used as the identity; otherwise a fresh
// negative id is assigned.
func (o *Overlay) Place(nickname string, price int64, serverBidID int64, at time.Time) models.BidRecord {
	id := serverBidID
	if id <= 0 {
		o.seq++
		id = -o.seq
	}
	rec := models.BidRecord{
		BidID:          id,
		BidderNickname: nickname,
		BidPrice:       price,
		CreatedAt:      at,
	}
	o.pending = &rec
	return rec
}

// Pending returns the optimistic record, if any.
func (o *Overlay) Pending() (models.BidRecord, bool) {
	if o.pending == nil {
		return models.BidRecord{}, false
	}
	return *o.pending, true
}

// Clear discards the optimistic record.
func (o *Overlay) Clear() {
	o.pending = nil
}

// Apply reconciles authoritative against the pending record and drops the
// pending record once the authoritative list contains it.
func (o *Overlay) Apply(authoritative []models.BidRecord) []models.BidRecord {
	display, matched := Reconcile(authoritative, o.pending)
	if matched {
		o.pending = nil
	}
	return display
}
