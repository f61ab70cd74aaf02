package push

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidlive/go/internal/credentials"
)

// WebSocketConfig holds configuration for WebSocket push channels.
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultWebSocketConfig returns default WebSocket configuration.
func DefaultWebSocketConfig(rawURL string) WebSocketConfig {
	return WebSocketConfig{
		URL:              rawURL,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
}

// Client frame actions
const (
	ActionSubscribe = "subscribe"
	ActionSnapshot  = "snapshot"
)

// ClientFrame is what the client writes on the socket.
type ClientFrame struct {
	Action      string `json:"action"`
	Destination string `json:"destination"`
	AuctionID   int64  `json:"auction_id"`
}

// TopicDestination is the broadcast topic for an auction.
func TopicDestination(auctionID int64) string {
	return fmt.Sprintf("/topic/auctions/%d", auctionID)
}

// ReplyDestination is the viewer's private queue for snapshot replies.
func ReplyDestination(auctionID int64) string {
	return fmt.Sprintf("/user/queue/auctions/%d/snapshot", auctionID)
}

// SnapshotDestination is where snapshot requests are sent.
func SnapshotDestination(auctionID int64) string {
	return fmt.Sprintf("/app/auctions/%d/snapshot", auctionID)
}

// WebSocketDialer dials push channels over WebSocket.
type WebSocketDialer struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

// withDefaults fills unset durations and sizes from DefaultWebSocketConfig.
func (c WebSocketConfig) withDefaults() WebSocketConfig {
	def := DefaultWebSocketConfig(c.URL)
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	return c
}

// NewWebSocketDialer creates a WebSocket dialer.
func NewWebSocketDialer(config WebSocketConfig) *WebSocketDialer {
	config = config.withDefaults()
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
	}
}

// Dial connects, subscribes to the auction topic and the private reply queue.
func (d *WebSocketDialer) Dial(ctx context.Context, auctionID int64, token string) (Channel, error) {
	u, err := url.Parse(d.config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse push url: %w", err)
	}
	q := u.Query()
	q.Set("auction_id", strconv.FormatInt(auctionID, 10))
	u.RawQuery = q.Encode()

	header := http.Header{}
	if auth := credentials.BearerHeader(token); auth != "" {
		header.Set("Authorization", auth)
	}

	conn, _, err := d.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial WebSocket: %w", err)
	}

	c := &wsChannel{
		conn:      conn,
		config:    d.config,
		auctionID: auctionID,
		stop:      make(chan struct{}),
	}

	conn.SetReadLimit(d.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
		return nil
	})

	for _, dest := range []string{TopicDestination(auctionID), ReplyDestination(auctionID)} {
		if err := c.write(ClientFrame{Action: ActionSubscribe, Destination: dest, AuctionID: auctionID}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", dest, err)
		}
	}

	go c.pingPump()
	return c, nil
}

type wsChannel struct {
	conn      *websocket.Conn
	config    WebSocketConfig
	auctionID int64

	writeMu   sync.Mutex
	stop      chan struct{}
	closeOnce sync.Once
}

func (c *wsChannel) write(frame ClientFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(frame)
}

// Receive reads the next text message. Close unblocks it.
func (c *wsChannel) Receive(ctx context.Context) ([]byte, error) {
	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Int64("auction_id", c.auctionID).Msg("unexpected WebSocket close")
			}
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		return message, nil
	}
}

func (c *wsChannel) RequestSnapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(ClientFrame{
		Action:      ActionSnapshot,
		Destination: SnapshotDestination(c.auctionID),
		AuctionID:   c.auctionID,
	})
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// pingPump keeps the connection alive until the channel is closed.
func (c *wsChannel) pingPump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				log.Debug().Err(err).Int64("auction_id", c.auctionID).Msg("failed to send ping")
				return
			}
		}
	}
}
