package invalidation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	const id = 42
	agg := Key{Resource: ResourceAggregate, AuctionID: id}
	bids := Key{Resource: ResourceBidHistory, AuctionID: id}

	tests := []struct {
		name string
		kind EventKind
		want Set
	}{
		{"bid accepted", EventKindBidAccepted, Set{agg: {}, bids: {}}},
		{"legacy bid alias", "new_bid", Set{agg: {}, bids: {}}},
		{"extended", EventKindAuctionExtended, Set{agg: {}}},
		{"ended", EventKindAuctionEnded, Set{agg: {}}},
		{"closed alias", "AUCTION_CLOSED", Set{agg: {}}},
		{"generic snapshot", "", Set{}},
		{"unknown", "SELLER_WAVED", Set{}},
	}

	d := NewDispatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Classify(id, tt.kind)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Classify(%q) mismatch (-want +got):\n%s", tt.kind, diff)
			}
		})
	}
}

func TestSetUnion(t *testing.T) {
	s := Set{}
	s.Union(NewDispatcher().Classify(1, EventKindAuctionEnded))
	s.Union(NewDispatcher().Classify(1, EventKindBidAccepted))

	if len(s) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(s))
	}
	if !s.Has(Key{Resource: ResourceBidHistory, AuctionID: 1}) {
		t.Fatal("expected bid history key")
	}
}
