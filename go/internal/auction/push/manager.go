// Package push owns the live channel for the auction being viewed. It keeps one
// subscription per viewed auction, reconnects on failure with a fixed delay, and
// guarantees that nothing is delivered for a handle once it has been closed.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidlive/go/internal/credentials"
	"github.com/mcdev12/bidlive/go/internal/models"
)

// ErrClosed is returned for operations on a closed handle.
var ErrClosed = errors.New("push handle closed")

// ErrNotConnected is returned when a snapshot is requested while the channel is down.
var ErrNotConnected = errors.New("push channel not connected")

// Channel is one established connection scoped to a single auction.
type Channel interface {
	// Receive blocks until the next raw message arrives or the channel fails.
	Receive(ctx context.Context) ([]byte, error)
	// RequestSnapshot asks the server for the current snapshot; the reply arrives through Receive.
	RequestSnapshot(ctx context.Context) error
	// Close releases the connection. It may be called more than once.
	Close() error
}

// Dialer establishes channels.
type Dialer interface {
	Dial(ctx context.Context, auctionID int64, token string) (Channel, error)
}

// Handlers receive delivered messages. They run on the manager's goroutines while
// the manager holds its delivery lock, so they must not block or call back into
// the Manager.
type Handlers struct {
	OnEvent    func(kind string, payload json.RawMessage)
	OnSnapshot func(delta models.SnapshotDelta)
}

// Config holds reconnect and request settings.
type Config struct {
	ReconnectDelay  time.Duration
	SnapshotTimeout time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:  3 * time.Second,
		SnapshotTimeout: 5 * time.Second,
	}
}

// Manager owns at most one live handle at a time.
type Manager struct {
	dialer Dialer
	creds  credentials.Provider
	clock  clockwork.Clock
	config Config

	mu         sync.Mutex
	generation uint64
	current    *Handle
}

// Handle is one open subscription.
type Handle struct {
	ID         string
	AuctionID  int64
	generation uint64
	handlers   Handlers

	cancel context.CancelFunc
	done   chan struct{}

	chMu    sync.Mutex
	channel Channel
	closed  bool
}

// Generation returns the generation the handle was opened under.
func (h *Handle) Generation() uint64 {
	return h.generation
}

// Done is closed once the handle's connection loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// NewManager creates a connection manager. A nil clock uses the real clock and
// nil credentials connect anonymously.
func NewManager(dialer Dialer, creds credentials.Provider, clock clockwork.Clock, config Config) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if creds == nil {
		creds = credentials.Anonymous{}
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if config.SnapshotTimeout <= 0 {
		config.SnapshotTimeout = DefaultConfig().SnapshotTimeout
	}
	return &Manager{
		dialer: dialer,
		creds:  creds,
		clock:  clock,
		config: config,
	}
}

// Open subscribes to auctionID, closing any handle that is still open. The
// connection is established in the background and a snapshot is requested as
// soon as it is up.
func (m *Manager) Open(ctx context.Context, auctionID int64, handlers Handlers) *Handle {
	hctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	previous := m.current
	m.generation++
	h := &Handle{
		ID:         uuid.New().String(),
		AuctionID:  auctionID,
		generation: m.generation,
		handlers:   handlers,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	m.current = h
	m.mu.Unlock()

	if previous != nil {
		previous.shutdown()
		log.Debug().
			Str("handle_id", previous.ID).
			Int64("auction_id", previous.AuctionID).
			Msg("closed previous push handle")
	}

	go m.run(hctx, h)

	log.Info().
		Str("handle_id", h.ID).
		Int64("auction_id", auctionID).
		Uint64("generation", h.generation).
		Msg("push handle opened")
	return h
}

// Close tears down h. Once Close returns no handler fires for h, including for
// messages already in flight.
func (m *Manager) Close(h *Handle) {
	if h == nil {
		return
	}

	m.mu.Lock()
	if m.current == h {
		m.current = nil
		m.generation++
	}
	m.mu.Unlock()

	h.shutdown()

	log.Info().
		Str("handle_id", h.ID).
		Int64("auction_id", h.AuctionID).
		Msg("push handle closed")
}

// Generation returns the manager's current generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// RequestSnapshot asks for the current snapshot on h's channel.
func (m *Manager) RequestSnapshot(ctx context.Context, h *Handle) error {
	if !m.isLive(h) {
		return ErrClosed
	}
	ch := h.activeChannel()
	if ch == nil {
		return ErrNotConnected
	}
	return m.requestSnapshot(ctx, ch)
}

func (m *Manager) requestSnapshot(ctx context.Context, ch Channel) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.SnapshotTimeout)
	defer cancel()
	if err := ch.RequestSnapshot(ctx); err != nil {
		return fmt.Errorf("request snapshot: %w", err)
	}
	return nil
}

func (m *Manager) isLive(h *Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked(h)
}

func (m *Manager) liveLocked(h *Handle) bool {
	return h != nil && m.current == h && h.generation == m.generation
}

// run keeps h connected until its context ends.
func (m *Manager) run(ctx context.Context, h *Handle) {
	defer close(h.done)

	for {
		err := m.session(ctx, h)
		if ctx.Err() != nil {
			return
		}

		log.Warn().
			Err(err).
			Str("handle_id", h.ID).
			Int64("auction_id", h.AuctionID).
			Dur("retry_in", m.config.ReconnectDelay).
			Msg("push channel lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.config.ReconnectDelay):
		}
	}
}

// session runs one connection until it fails.
func (m *Manager) session(ctx context.Context, h *Handle) error {
	token, err := m.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}

	ch, err := m.dialer.Dial(ctx, h.AuctionID, token)
	if err != nil {
		return fmt.Errorf("dial push channel: %w", err)
	}
	if !h.attach(ch) {
		ch.Close()
		return ErrClosed
	}
	defer h.detach(ch)

	log.Debug().
		Str("handle_id", h.ID).
		Int64("auction_id", h.AuctionID).
		Msg("push channel connected")

	if err := m.requestSnapshot(ctx, ch); err != nil {
		return err
	}

	for {
		raw, err := ch.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		m.deliver(h, Decode(raw))
	}
}

// deliver hands msg to h's handlers if h is still the live handle.
func (m *Manager) deliver(h *Handle, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.liveLocked(h) {
		log.Debug().
			Str("handle_id", h.ID).
			Uint64("generation", h.generation).
			Msg("discarding message for stale handle")
		return
	}

	switch msg.Type {
	case MessageTypeEvent:
		if h.handlers.OnEvent != nil {
			h.handlers.OnEvent(msg.Kind, msg.Payload)
		}
	default:
		if h.handlers.OnSnapshot != nil {
			h.handlers.OnSnapshot(msg.Snapshot)
		}
	}
}

func (h *Handle) attach(ch Channel) bool {
	h.chMu.Lock()
	defer h.chMu.Unlock()
	if h.closed {
		return false
	}
	h.channel = ch
	return true
}

func (h *Handle) detach(ch Channel) {
	h.chMu.Lock()
	if h.channel == ch {
		h.channel = nil
	}
	h.chMu.Unlock()
	ch.Close()
}

func (h *Handle) activeChannel() Channel {
	h.chMu.Lock()
	defer h.chMu.Unlock()
	return h.channel
}

// shutdown cancels the loop and closes the live channel so a blocked Receive returns.
func (h *Handle) shutdown() {
	h.cancel()

	h.chMu.Lock()
	ch := h.channel
	h.closed = true
	h.channel = nil
	h.chMu.Unlock()

	if ch != nil {
		ch.Close()
	}
}
