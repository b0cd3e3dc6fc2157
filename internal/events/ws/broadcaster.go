// Package ws fans pool events out to WebSocket subscribers. Delivery is
// best-effort: a subscriber that cannot keep up is disconnected rather than
// allowed to stall the stream.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"curvepool/internal/events"
)

// Config configures broadcaster behavior.
type Config struct {
	// WriteTimeout is timeout for writing a frame to a subscriber.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// SendBuffer is the per-subscriber queue size; a full queue drops the
	// subscriber.
	SendBuffer int
}

// DefaultConfig returns default broadcaster configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
	}
}

// Broadcaster implements events.Sink by pushing every event, JSON-encoded,
// to all connected WebSocket subscribers.
type Broadcaster struct {
	config   Config
	upgrader websocket.Upgrader

	clients   map[*client]struct{}
	clientsMu sync.Mutex

	closed atomic.Bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(config *Config) *Broadcaster {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	return &Broadcaster{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Compile-time interface check.
var _ events.Sink = (*Broadcaster)(nil)

// Emit queues the event for every connected subscriber. Subscribers with a
// full queue are dropped; Emit itself never blocks and never fails after the
// originating mutation.
func (b *Broadcaster) Emit(_ context.Context, ev *events.Event) error {
	if b.closed.Load() {
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	b.clientsMu.Lock()
	var dropped []*client
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(b.clients, c)
	}
	b.clientsMu.Unlock()

	for _, c := range dropped {
		c.close()
	}
	return nil
}

// Handler returns an HTTP handler that upgrades the request and streams
// events until the subscriber disconnects.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.closed.Load() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}

		c := &client{
			conn: conn,
			send: make(chan []byte, b.config.SendBuffer),
		}

		b.clientsMu.Lock()
		b.clients[c] = struct{}{}
		b.clientsMu.Unlock()

		go b.writeLoop(c)
		go b.readLoop(c)
	})
}

// Close disconnects all subscribers. Subsequent Emit calls are no-ops.
func (b *Broadcaster) Close() error {
	b.closed.Store(true)

	b.clientsMu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*client]struct{})
	b.clientsMu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

// writeLoop drains the client queue and keeps the connection alive with
// pings. Exits on any write error or when the queue is closed.
func (b *Broadcaster) writeLoop(c *client) {
	ticker := time.NewTicker(b.config.PingInterval)
	defer func() {
		ticker.Stop()
		b.remove(c)
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes inbound frames so control messages are processed. The
// stream is one-way; any payload from the subscriber is discarded.
func (b *Broadcaster) readLoop(c *client) {
	defer b.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// remove unregisters and disconnects a client. Safe to call more than once.
func (b *Broadcaster) remove(c *client) {
	b.clientsMu.Lock()
	delete(b.clients, c)
	b.clientsMu.Unlock()
	c.close()
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}
