// Package broadcast fans hazard summaries out to every connected WebSocket
// subscriber. Delivery is best effort: no acknowledgements, no replay for
// late subscribers, and slow subscribers are disconnected.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"impactalert/internal/notifications/core"
	"impactalert/internal/types"
)

const (
	// clientSendBufferSize is the per-subscriber queue length. A subscriber
	// whose queue is full when an event arrives is dropped.
	clientSendBufferSize = 256

	// publishBufferSize bounds events waiting for the hub loop.
	publishBufferSize = 64
)

// Frame is the wire envelope of every message pushed to subscribers.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns the subscriber set. Only the Run goroutine mutates it; mu guards
// reads from other goroutines.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan message

	// seq numbers published events. A subscriber only receives events
	// numbered after its registration.
	seq atomic.Uint64

	quit      chan struct{}
	closeOnce sync.Once

	metrics core.NotificationMetrics
	logger  *slog.Logger
}

// Client is one WebSocket subscriber.
type Client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	since uint64
}

type message struct {
	seq  uint64
	data []byte
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(metrics core.NotificationMetrics, logger *slog.Logger) *Hub {
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, publishBufferSize),
		quit:       make(chan struct{}),
		metrics:    metrics,
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled or Close
// is called. On exit every subscriber is disconnected.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("broadcast hub started")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.quit:
			return nil
		case c := <-h.register:
			h.add(ctx, c)
		case c := <-h.unregister:
			h.remove(ctx, c)
		case msg := <-h.broadcast:
			h.fanOut(ctx, msg)
		}
	}
}

// Publish queues event for every current subscriber. It never blocks and
// never fails; an event that cannot be queued is logged and dropped.
func (h *Hub) Publish(ctx context.Context, event types.BroadcastEvent) {
	data, err := json.Marshal(Frame{Event: types.EventRedAlert, Data: event})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode broadcast event", "error", err)
		return
	}

	select {
	case <-h.quit:
		h.metrics.RecordDelivery(ctx, core.ChannelBroadcast, core.MetricSkipped)
	case h.broadcast <- message{seq: h.seq.Add(1), data: data}:
	default:
		h.metrics.RecordDelivery(ctx, core.ChannelBroadcast, core.MetricSkipped)
		h.logger.WarnContext(ctx, "broadcast queue full, event dropped")
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the hub. It is safe to call more than once.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.quit) })
	return nil
}

// Register hands c to the hub loop. It returns false when the hub has stopped.
// Events published before Register is called are never delivered to c, even
// when they are still queued.
func (h *Hub) Register(c *Client) bool {
	c.since = h.seq.Load()
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes c. Calls after shutdown are no-ops.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) add(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.RecordSubscribers(ctx, n)
	h.logger.Info("subscriber connected", "client_id", c.id, "subscribers", n)
}

func (h *Hub) remove(ctx context.Context, c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.RecordSubscribers(ctx, n)
		h.logger.Info("subscriber disconnected", "client_id", c.id, "subscribers", n)
	}
}

func (h *Hub) fanOut(ctx context.Context, msg message) {
	var dropped []*Client
	delivered := 0

	h.mu.RLock()
	for c := range h.clients {
		if msg.seq <= c.since {
			continue
		}
		select {
		case c.send <- msg.data:
			delivered++
		default:
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dropped {
		h.logger.Warn("subscriber too slow, disconnecting", "client_id", c.id)
		h.remove(ctx, c)
	}

	h.metrics.RecordDelivery(ctx, core.ChannelBroadcast, core.MetricSuccess)
	h.logger.Debug("broadcast delivered", "subscribers", delivered, "dropped", len(dropped))
}

// shutdown closes every send queue so the write pumps send a close frame.
func (h *Hub) shutdown() {
	h.closeOnce.Do(func() { close(h.quit) })

	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	h.metrics.RecordSubscribers(context.Background(), 0)
	h.logger.Info("broadcast hub stopped")
}
