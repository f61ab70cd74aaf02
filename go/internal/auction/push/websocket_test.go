package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketDialerSubscribesAndReceives(t *testing.T) {
	frames := make(chan ClientFrame, 8)
	authHeaders := make(chan string, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders <- r.Header.Get("Authorization")
		if r.URL.Query().Get("auction_id") != "55" {
			http.Error(w, "auction_id is required", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
			if frame.Action == ActionSnapshot {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"currentPrice":2500}`))
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/auctions"
	dialer := NewWebSocketDialer(WebSocketConfig{URL: wsURL})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := dialer.Dial(ctx, 55, "tok")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if got := <-authHeaders; got != "Bearer tok" {
		t.Fatalf("authorization header = %q", got)
	}

	want := []ClientFrame{
		{Action: ActionSubscribe, Destination: TopicDestination(55), AuctionID: 55},
		{Action: ActionSubscribe, Destination: ReplyDestination(55), AuctionID: 55},
	}
	for i, w := range want {
		select {
		case got := <-frames:
			if got != w {
				t.Fatalf("frame %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not received", i)
		}
	}

	if err := ch.RequestSnapshot(ctx); err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	raw, err := ch.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	msg := Decode(raw)
	if msg.Snapshot.CurrentPrice == nil || *msg.Snapshot.CurrentPrice != 2500 {
		t.Fatalf("unexpected message %+v", msg)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := ch.Receive(ctx); err == nil {
		t.Fatal("expected receive error after close")
	}
	ch.Close()
}
