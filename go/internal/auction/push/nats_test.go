package push

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
)

func TestNATSSubjects(t *testing.T) {
	cfg := DefaultNATSConfig()
	if got := cfg.EventsSubject(8); got != "auction.8.events" {
		t.Fatalf("events subject = %q", got)
	}
	if got := cfg.SnapshotSubject(8); got != "auction.8.snapshot" {
		t.Fatalf("snapshot subject = %q", got)
	}
}

// answerSnapshots replies to every snapshot request for auctionID with body.
func answerSnapshots(t *testing.T, url string, cfg NATSConfig, auctionID int64, body string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("responder connect: %v", err)
	}
	if _, err := nc.Subscribe(cfg.SnapshotSubject(auctionID), func(m *nats.Msg) {
		if err := m.Respond([]byte(body)); err != nil {
			t.Errorf("respond: %v", err)
		}
	}); err != nil {
		t.Fatalf("responder subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("responder flush: %v", err)
	}
	return nc
}

func TestNATSDialerEventsAndSnapshotReply(t *testing.T) {
	srv := natstest.RunRandClientPortServer()
	defer srv.Shutdown()

	cfg := DefaultNATSConfig()
	cfg.URL = srv.ClientURL()
	responder := answerSnapshots(t, srv.ClientURL(), cfg, 8, `{"$type":"snapshot","snapshot":{"currentPrice":1800}}`)
	defer responder.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := NewNATSDialer(cfg).Dial(ctx, 8, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if err := responder.Publish(cfg.EventsSubject(8), []byte(`{"$type":"event","kind":"BID_ACCEPTED"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	raw, err := ch.Receive(ctx)
	if err != nil {
		t.Fatalf("receive event: %v", err)
	}
	if msg := Decode(raw); msg.Type != MessageTypeEvent || msg.Kind != "BID_ACCEPTED" {
		t.Fatalf("unexpected event %+v", msg)
	}

	if err := ch.RequestSnapshot(ctx); err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	raw, err = ch.Receive(ctx)
	if err != nil {
		t.Fatalf("receive snapshot: %v", err)
	}
	msg := Decode(raw)
	if msg.Type != MessageTypeSnapshot || msg.Snapshot.CurrentPrice == nil || *msg.Snapshot.CurrentPrice != 1800 {
		t.Fatalf("unexpected snapshot %+v", msg)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := ch.Receive(ctx); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("receive after close = %v, want ErrChannelClosed", err)
	}
}

func TestNATSChannelFailsWhenServerStops(t *testing.T) {
	srv := natstest.RunRandClientPortServer()

	cfg := DefaultNATSConfig()
	cfg.URL = srv.ClientURL()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := NewNATSDialer(cfg).Dial(ctx, 3, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	srv.Shutdown()

	_, err = ch.Receive(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("receive after server stop = %v, want a connection error", err)
	}
}

func TestNATSDialerConnectFailure(t *testing.T) {
	srv := natstest.RunRandClientPortServer()
	url := srv.ClientURL()
	srv.Shutdown()

	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.ConnectWait = time.Second
	if _, err := NewNATSDialer(cfg).Dial(context.Background(), 1, ""); err == nil {
		t.Fatal("expected dial to fail with no server")
	}
}

func TestManagerReconnectsOverNATS(t *testing.T) {
	srv := natstest.RunRandClientPortServer()
	port := srv.Addr().(*net.TCPAddr).Port

	cfg := DefaultNATSConfig()
	cfg.URL = srv.ClientURL()
	first := answerSnapshots(t, srv.ClientURL(), cfg, 5, `{"currentPrice":1000}`)
	defer first.Close()

	clock := clockwork.NewFakeClock()
	m := NewManager(NewNATSDialer(cfg), nil, clock, Config{ReconnectDelay: 3 * time.Second})
	rec := newRecorder()
	h := m.Open(context.Background(), 5, rec.handlers())
	defer m.Close(h)

	expectPrice := func(want int64) {
		t.Helper()
		select {
		case d := <-rec.snapshots:
			if d.CurrentPrice == nil || *d.CurrentPrice != want {
				t.Fatalf("unexpected delta %+v, want price %d", d, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no snapshot with price %d", want)
		}
	}
	expectPrice(1000)

	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("manager never waited for reconnect: %v", err)
	}

	opts := natstest.DefaultTestOptions
	opts.Port = port
	restarted := natstest.RunServer(&opts)
	defer restarted.Shutdown()
	second := answerSnapshots(t, restarted.ClientURL(), cfg, 5, `{"currentPrice":2000}`)
	defer second.Close()

	clock.Advance(3 * time.Second)
	expectPrice(2000)
}
