// Package ws pushes freshly computed ROI results to connected presentation
// clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/types"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

// Event names carried in Message.Event.
const (
	EventResults = "roi_results"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks are applied at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event  string                `json:"event"`
	Reason string                `json:"reason,omitempty"`
	Data   types.ComputeResponse `json:"data"`
}

// Hub manages WebSocket clients and fans out controller updates.
type Hub struct {
	latest func() *engine.Output
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	sent    uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub. latest, when non-nil, supplies the output sent to a
// client as soon as it connects.
func New(latest func() *engine.Output, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		latest:  latest,
		logger:  logger.With("component", "ws"),
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Publish broadcasts an accepted controller result. It has the signature
// expected by controller.Subscribe.
func (h *Hub) Publish(u controller.Update) {
	data, err := buildMessage(u.Reason, u.Output)
	if err != nil {
		h.logger.Warn("encode broadcast failed", "action", "broadcast", "error", err)
		return
	}
	h.broadcast(data)
}

// ServeHTTP upgrades the connection and serves the client until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	// Queue the current results before the client becomes visible to
	// broadcast and closeAll.
	if h.latest != nil {
		if out := h.latest(); out != nil {
			if data, err := buildMessage("connected", out); err == nil {
				c.send <- data
			}
		}
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sent returns how many messages have been queued to clients.
func (h *Hub) Sent() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", "action", "connect", "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast queues data to every client. Sends happen under the hub lock
// so no channel is closed mid-send; clients with a full buffer are dropped.
func (h *Hub) broadcast(data []byte) {
	var slow []*client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow client", "action", "broadcast")
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func buildMessage(reason string, out *engine.Output) ([]byte, error) {
	msg := Message{Event: EventResults, Reason: reason}
	if out != nil {
		msg.Data = types.ComputeResponse{
			Results:  out.Results,
			Cashflow: out.Cashflow,
			Matrix:   out.Matrix,
		}
	}
	return json.Marshal(msg)
}

// writePump forwards queued messages to the connection and sends pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
