package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/servicedeck/servicedeck/internal/aggregator"
	"github.com/servicedeck/servicedeck/internal/api"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10 // must stay below pongWait

	// queueDepth is how many overviews may wait for a slow client before it
	// is dropped.
	queueDepth = 4

	defaultInterval = 10 * time.Second

	// EventOverview is the event name of every message the hub sends.
	EventOverview = "overview"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	// CORS belongs at the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// OverviewSource evaluates the fleet.
type OverviewSource interface {
	Overview(ctx context.Context) (*aggregator.Overview, error)
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.OverviewResponse `json:"data"`
}

// Hub streams the fleet overview to every connected dashboard, on a fixed
// interval and whenever Notify is called.
type Hub struct {
	source   OverviewSource
	interval time.Duration
	kick     chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one dashboard connection. queue is never closed; gone is closed
// exactly once when the hub lets go of the client.
type client struct {
	conn  *websocket.Conn
	queue chan []byte
	gone  chan struct{}
	once  sync.Once
}

// New creates a Hub that evaluates src every interval.
func New(src OverviewSource, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Hub{
		source:   src,
		interval: interval,
		kick:     make(chan struct{}, 1),
		clients:  make(map[*client]struct{}),
	}
}

// Run pushes overviews until ctx is cancelled, then drops every client.
// Nothing is evaluated while no dashboard is connected.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.snapshot() {
				h.drop(c)
			}
			return
		case <-t.C:
			h.publish(ctx)
		case <-h.kick:
			h.publish(ctx)
		}
	}
}

// Notify asks for an immediate push. It never blocks, and requests made
// while one is pending collapse into it.
func (h *Hub) Notify() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// ServeHTTP upgrades the request, sends the current overview and then
// streams updates until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // the upgrader already answered
	}
	c := &client{
		conn:  conn,
		queue: make(chan []byte, queueDepth),
		gone:  make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if data, err := h.encode(r.Context()); err == nil {
		h.offer(c, data)
	} else {
		slog.Warn("ws: initial overview failed", "err", err)
	}

	go c.write()
	c.read()
	h.drop(c)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) publish(ctx context.Context) {
	targets := h.snapshot()
	if len(targets) == 0 {
		return
	}
	data, err := h.encode(ctx)
	if err != nil {
		slog.Warn("ws: overview failed, skipping push", "err", err)
		return
	}
	for _, c := range targets {
		h.offer(c, data)
	}
}

// offer queues data for c, dropping a client that has fallen behind.
func (h *Hub) offer(c *client, data []byte) {
	select {
	case c.queue <- data:
	case <-c.gone:
	default:
		slog.Debug("ws: client too slow, dropping")
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.once.Do(func() { close(c.gone) })
}

func (h *Hub) encode(ctx context.Context) ([]byte, error) {
	ov, err := h.source.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("ws: build overview: %w", err)
	}
	return json.Marshal(Message{Event: EventOverview, Data: api.ToOverviewResponse(ov)})
}

// write owns all writes to the connection.
func (c *client) write() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind    = websocket.TextMessage
			payload []byte
		)
		select {
		case payload = <-c.queue:
		case <-ping.C:
			kind = websocket.PingMessage
		case <-c.gone:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		if err := c.conn.WriteMessage(kind, payload); err != nil {
			return
		}
	}
}

// read discards client frames; it exists to process pongs and close frames
// and returns once the connection is gone.
func (c *client) read() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
