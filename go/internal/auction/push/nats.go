package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ErrChannelClosed is returned by Receive after the connection has closed.
var ErrChannelClosed = errors.New("push channel closed")

// NATSConfig holds configuration for NATS push channels.
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g. "auction" gives "auction.42.events"
	Name          string
	ConnectWait   time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction",
		Name:          "auctionwatch",
		ConnectWait:   5 * time.Second,
		BufferSize:    256,
	}
}

// EventsSubject is the broadcast subject for an auction.
func (c NATSConfig) EventsSubject(auctionID int64) string {
	return fmt.Sprintf("%s.%d.events", c.SubjectPrefix, auctionID)
}

// SnapshotSubject is the request subject for on-demand snapshots.
func (c NATSConfig) SnapshotSubject(auctionID int64) string {
	return fmt.Sprintf("%s.%d.snapshot", c.SubjectPrefix, auctionID)
}

// NATSDialer dials push channels over NATS. The auction topic is a plain
// subscription and snapshot replies land on a private inbox.
type NATSDialer struct {
	config NATSConfig
}

// NewNATSDialer creates a NATS dialer.
func NewNATSDialer(config NATSConfig) *NATSDialer {
	def := DefaultNATSConfig()
	if config.URL == "" {
		config.URL = def.URL
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = def.SubjectPrefix
	}
	if config.ConnectWait <= 0 {
		config.ConnectWait = def.ConnectWait
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	return &NATSDialer{config: config}
}

// Dial connects and subscribes. Reconnection is left to the Manager, so the
// client's own reconnect logic is disabled.
func (d *NATSDialer) Dial(ctx context.Context, auctionID int64, token string) (Channel, error) {
	c := &natsChannel{
		msgs:            make(chan *nats.Msg, d.config.BufferSize),
		errs:            make(chan error, 1),
		snapshotSubject: d.config.SnapshotSubject(auctionID),
		inbox:           nats.NewInbox(),
	}

	opts := []nats.Option{
		nats.Name(d.config.Name),
		nats.Timeout(d.config.ConnectWait),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err == nil {
				err = ErrChannelClosed
			}
			c.fail(err)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.fail(ErrChannelClosed)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Warn().Err(err).Int64("auction_id", auctionID).Msg("NATS error")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(d.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc

	if _, err := nc.ChanSubscribe(d.config.EventsSubject(auctionID), c.msgs); err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to events: %w", err)
	}
	if _, err := nc.ChanSubscribe(c.inbox, c.msgs); err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to reply inbox: %w", err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("flush subscriptions: %w", err)
	}

	return c, nil
}

type natsChannel struct {
	nc              *nats.Conn
	msgs            chan *nats.Msg
	errs            chan error
	snapshotSubject string
	inbox           string
	failOnce        sync.Once
}

func (c *natsChannel) fail(err error) {
	c.failOnce.Do(func() {
		c.errs <- err
	})
}

func (c *natsChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-c.errs:
		c.errs <- err
		return nil, err
	case msg := <-c.msgs:
		return msg.Data, nil
	}
}

func (c *natsChannel) RequestSnapshot(ctx context.Context) error {
	if err := c.nc.PublishRequest(c.snapshotSubject, c.inbox, nil); err != nil {
		return fmt.Errorf("publish snapshot request: %w", err)
	}
	return c.nc.FlushWithContext(ctx)
}

func (c *natsChannel) Close() error {
	c.nc.Close()
	return nil
}
