package broadcast

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"impactalert/internal/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames; anything larger is a protocol error.
	maxMessageSize = 4 * 1024
)

// NewUpgrader builds an upgrader that accepts the given origins. "*" accepts
// any origin; requests without an Origin header (non-browser clients) are
// always accepted.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := originSet[origin]
			return ok
		},
	}
}

// Handler upgrades GET /ws requests and attaches the connection to the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, upgrader: NewUpgrader(allowedOrigins)}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.hub.logger.With("request_id", types.GetRequestID(r.Context()))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		logger.Warn("websocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBufferSize),
	}
	if !h.hub.Register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards inbound data and keeps the read deadline alive on pongs.
// It unregisters the client when the connection ends.
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.hub.logger.Debug("unexpected websocket close", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump drains the client's queue onto the connection and sends pings.
// A closed queue means the hub dropped the client.
func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.hub.logger.Debug("websocket write failed", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
