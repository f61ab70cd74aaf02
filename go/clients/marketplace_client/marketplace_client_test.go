package marketplace_client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/bidlive/go/clients"
	"github.com/mcdev12/bidlive/go/internal/credentials"
	"github.com/mcdev12/bidlive/go/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, credentials.NewStatic("tok-1"))
}

func TestGetAuction(t *testing.T) {
	endAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auctions/12" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"success":true,"data":{"auctionId":12,"title":"Lamp","currentPrice":3000,"startPrice":1000,"bidCount":4,"status":"RUNNING","endAt":"2026-06-01T12:00:00Z","images":["a.jpg"]}}`))
	})

	agg, err := c.GetAuction(context.Background(), 12)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	want := models.AuctionAggregate{
		AuctionID:    12,
		Title:        "Lamp",
		CurrentPrice: 3000,
		StartPrice:   1000,
		BidCount:     4,
		Status:       models.AuctionStatusRunning,
		EndAt:        endAt,
		Images:       []string{"a.jpg"},
	}
	if diff := cmp.Diff(want, agg); diff != "" {
		t.Fatalf("aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestGetAuctionStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.GetAuction(context.Background(), 1)
	var statusErr *clients.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
}

func TestListBids(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("size") != "5" || r.URL.Query().Get("page") != "0" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"success":true,"data":{"content":[{"bidId":2,"bidderNickname":"owl","bidPrice":1200,"createdAt":"2026-06-01T11:00:00Z"}],"page":0,"size":5,"hasNext":false}}`))
	})
	c.SetPageSize(5)

	page, err := c.ListBids(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(page.Bids) != 1 || page.Bids[0].BidderNickname != "owl" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestPlaceBidAccepted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get(IdempotencyKeyHeader) != "key-1" {
			t.Errorf("missing idempotency key")
		}
		var sub models.BidSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if sub.BidAmount != 1500 {
			t.Errorf("unexpected amount %d", sub.BidAmount)
		}
		w.Write([]byte(`{"success":true,"message":"ok","data":{"bidId":91}}`))
	})

	receipt, err := c.PlaceBid(context.Background(), models.BidSubmission{AuctionID: 3, BidAmount: 1500, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if receipt.BidID != 91 {
		t.Fatalf("bid id = %d, want 91", receipt.BidID)
	}
}

func TestPlaceBidRejected(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		reason  string
	}{
		{
			name: "client error with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"success":false,"message":"Bid must exceed 1,600"}`))
			},
			reason: "Bid must exceed 1,600",
		},
		{
			name: "client error with raw body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`auction closed`))
			},
			reason: "auction closed",
		},
		{
			name: "ok status with failure flag",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success":false,"message":"insufficient balance"}`))
			},
			reason: "insufficient balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.PlaceBid(context.Background(), models.BidSubmission{AuctionID: 1, BidAmount: 10, IdempotencyKey: "k"})
			var rejected *BidRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("expected BidRejectedError, got %v", err)
			}
			if rejected.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", rejected.Reason, tt.reason)
			}
		})
	}
}

func TestPlaceBidServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.PlaceBid(context.Background(), models.BidSubmission{AuctionID: 1, BidAmount: 10, IdempotencyKey: "k"})
	var rejected *BidRejectedError
	if err == nil || errors.As(err, &rejected) {
		t.Fatalf("expected plain error for 5xx, got %v", err)
	}
}
