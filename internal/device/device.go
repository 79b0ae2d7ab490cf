// Package device maintains the websocket link to the oven controller.
package device

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/oven-monitor/internal/telemetry"
)

// DefaultRetry is the fixed delay between reconnect attempts.
const DefaultRetry = 2000 * time.Millisecond

const (
	sendQueue    = 16
	writeTimeout = 5 * time.Second
)

// Client keeps a websocket open to the controller, reconnecting forever.
// Inbound text frames are handed to the caller unparsed.
type Client struct {
	url    string
	retry  time.Duration
	dialer *websocket.Dialer

	out       chan string
	connected atomic.Bool
	reconnect atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the reconnect delay.
func WithRetry(d time.Duration) Option {
	return func(c *Client) { c.retry = d }
}

// NewClient creates a client for a ws:// or wss:// URL.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		retry:  DefaultRetry,
		dialer: websocket.DefaultDialer,
		out:    make(chan string, sendQueue),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsConnected reports whether the link is currently open.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Reconnects returns the number of dials after the first successful one.
func (c *Client) Reconnects() int64 {
	return c.reconnect.Load()
}

// Send queues a command for the controller. It never blocks: commands are
// dropped while disconnected or when the queue is full.
func (c *Client) Send(cmd string) {
	if !c.IsConnected() {
		log.Printf("device: not connected, dropping %q", cmd)
		return
	}
	select {
	case c.out <- cmd:
	default:
		log.Printf("device: send queue full, dropping %q", cmd)
	}
}

// Run connects and pumps messages until ctx is cancelled. Each inbound text
// frame is delivered on inbound. Every new connection starts with a
// readings request.
func (c *Client) Run(ctx context.Context, inbound chan<- []byte) error {
	dialled := false
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("device: connect %s: %v (retry in %v)", c.url, err, c.retry)
		} else {
			if dialled {
				c.reconnect.Add(1)
			}
			dialled = true
			log.Printf("device: connected to %s", c.url)
			err = c.serve(ctx, conn, inbound)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("device: connection closed: %v (retry in %v)", err, c.retry)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

// serve owns conn until it fails. Only this goroutine writes to conn.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, inbound chan<- []byte) error {
	defer conn.Close()

	c.drain()
	if err := c.write(conn, telemetry.CmdGetReadings); err != nil {
		return err
	}
	c.connected.Store(true)
	defer c.connected.Store(false)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readPump(ctx, conn, inbound)
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case cmd := <-c.out:
			if err := c.write(conn, cmd); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, inbound chan<- []byte) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		select {
		case inbound <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(conn *websocket.Conn, cmd string) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		return fmt.Errorf("device: write %q: %w", cmd, err)
	}
	return nil
}

// drain discards commands queued against a previous connection.
func (c *Client) drain() {
	for {
		select {
		case cmd := <-c.out:
			log.Printf("device: discarding stale %q", cmd)
		default:
			return
		}
	}
}
