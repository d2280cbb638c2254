package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/bonkroom/server/internal/protocol"
)

// Client implements bonkroom.Conn over a gorilla/websocket connection.
type Client struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	mu          sync.RWMutex
	closed      bool
	rateLimiter *rate.Limiter // connection-level flood control, independent of the room's action ratelimiter
}

// NewClient wraps an accepted connection with flood control and a write pump.
func NewClient(conn *websocket.Conn, remoteAddr string, floodControl *FloodControlConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if floodControl != nil && floodControl.Enabled {
		limiter = rate.NewLimiter(floodControl.FramesPerSecond, floodControl.Burst)
	}

	client := &Client{
		id:          uuid.New().String(),
		conn:        conn,
		remoteAddr:  remoteAddr,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, 256),
		rateLimiter: limiter,
	}

	go client.writePump()

	return client
}

func (c *Client) ID() string                   { return c.id }
func (c *Client) RemoteAddr() string            { return c.remoteAddr }
func (c *Client) Context() context.Context      { return c.ctx }

// Send encodes (opcode, args...) with the wire codec and queues it for delivery.
func (c *Client) Send(ctx context.Context, opcode string, args ...any) error {
	data, err := protocol.Encode(opcode, args...)
	if err != nil {
		return fmt.Errorf("ws: failed to encode opcode %q: %w", opcode, err)
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("ws: connection is closed")
	}

	select {
	case c.sendCh <- data:
		c.mu.RUnlock()
		return nil
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	case <-c.ctx.Done():
		c.mu.RUnlock()
		return fmt.Errorf("ws: connection context cancelled")
	}
}

// Close closes the connection with the normal closure code.
func (c *Client) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a specific close code and reason.
func (c *Client) CloseWithCode(ctx context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, message, deadline)

	close(c.sendCh)
	return c.conn.Close()
}

// IsAlive reports whether the connection is still open.
func (c *Client) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// checkFloodControl reports whether the raw frame is allowed through before
// it is even decoded. This protects the read loop from a client hammering
// frames faster than any opcode-level ratelimiter (spec.md §4.B) could ever
// be consulted; it is not the spec's per-action ratelimiter.
func (c *Client) checkFloodControl() bool {
	if c.rateLimiter == nil {
		return true
	}
	return c.rateLimiter.Allow()
}

// writePump pumps messages from the send channel to the websocket connection
// and keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
