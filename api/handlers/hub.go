package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/api"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Notification is the frame pushed to consoles. It deliberately carries
// no state, only "something changed"; consoles re-fetch on receipt.
type Notification struct {
	Changed bool     `json:"changed"`
	Units   []string `json:"units,omitempty"`
	SentAt  int64    `json:"sentAt"`
}

// Hub tracks connected consoles and broadcasts invalidation
// notifications. A console may subscribe scoped to a single unit, in
// which case it only receives notifications touching that unit.
type Hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	metrics *api.Metrics
}

type hubClient struct {
	conn  *websocket.Conn
	scope string // unit id, or empty for the full board
	send  chan []byte
}

// NewHub returns an empty hub.
func NewHub(m *api.Metrics) *Hub {
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		metrics: m,
	}
}

// Notify broadcasts a change notification. units names the units the
// mutation touched; consoles scoped to other units are skipped.
func (h *Hub) Notify(units ...string) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Notification{
		Changed: true,
		Units:   units,
		SentAt:  time.Now().UnixMilli(),
	})
	if err != nil {
		zap.S().Errorw("failed to marshal notification", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.scope != "" && !contains(units, c.scope) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// slow console, drop the frame; the next notification or
			// its periodic refresh will converge it
		}
	}
}

// ClientCount returns the number of connected consoles.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.WSConnected(1)
	zap.S().Infow("realtime console connected", "scope", c.scope)
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.metrics.WSConnected(-1)
	zap.S().Infow("realtime console disconnected", "scope", c.scope)
}

// readPump discards inbound frames; the channel is one-way. It exists
// to process control messages and detect the close.
func (c *hubClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
