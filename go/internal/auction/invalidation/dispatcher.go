// Package invalidation decides which pulled resources a push event makes stale.
package invalidation

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// EventKind names a discrete lifecycle event delivered over the push channel.
type EventKind string

const (
	EventKindBidAccepted     EventKind = "BID_ACCEPTED"
	EventKindAuctionExtended EventKind = "AUCTION_EXTENDED"
	EventKindAuctionEnded    EventKind = "AUCTION_ENDED"
)

// aliases maps legacy wire names onto canonical kinds.
var aliases = map[string]EventKind{
	"BID_ACCEPTED":     EventKindBidAccepted,
	"NEW_BID":          EventKindBidAccepted,
	"BID_PLACED":       EventKindBidAccepted,
	"AUCTION_EXTENDED": EventKindAuctionExtended,
	"AUCTION_ENDED":    EventKindAuctionEnded,
	"AUCTION_CLOSED":   EventKindAuctionEnded,
}

// NormalizeKind maps a wire name onto its canonical kind, case-insensitively.
// Unknown names are returned upper-cased with ok == false.
func NormalizeKind(raw string) (EventKind, bool) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if kind, ok := aliases[name]; ok {
		return kind, true
	}
	return EventKind(name), false
}

// Resource identifies a pulled resource type.
type Resource string

const (
	ResourceAggregate  Resource = "aggregate"
	ResourceBidHistory Resource = "bid_history"
)

// Key is one pulled resource of one auction.
type Key struct {
	Resource  Resource
	AuctionID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Resource, k.AuctionID)
}

// Set is the set of resources to refetch.
type Set map[Key]struct{}

// Has reports whether k is in the set.
func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k.
func (s Set) Add(k Key) {
	s[k] = struct{}{}
}

// Union adds every key of other.
func (s Set) Union(other Set) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Dispatcher classifies event kinds.
type Dispatcher struct{}

// NewDispatcher returns a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Classify returns the resources of auctionID that an event of kind makes stale.
// An empty kind denotes a generic snapshot and invalidates nothing. Unknown kinds
// invalidate nothing and are logged.
func (d *Dispatcher) Classify(auctionID int64, kind EventKind) Set {
	set := Set{}
	if kind == "" {
		return set
	}

	canonical, ok := NormalizeKind(string(kind))
	if !ok {
		log.Warn().
			Int64("auction_id", auctionID).
			Str("event_kind", string(kind)).
			Msg("unrecognized event kind, nothing invalidated")
		return set
	}

	switch canonical {
	case EventKindBidAccepted:
		set.Add(Key{Resource: ResourceAggregate, AuctionID: auctionID})
		set.Add(Key{Resource: ResourceBidHistory, AuctionID: auctionID})
	case EventKindAuctionExtended, EventKindAuctionEnded:
		set.Add(Key{Resource: ResourceAggregate, AuctionID: auctionID})
	}
	return set
}
