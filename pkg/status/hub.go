package status

import (
	"sync"
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Snapshots queued per client before new ones are dropped for it.
	clientBuffer = 4
	writeWait    = 5 * time.Second
)

// Client is one connected websocket consumer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the latest cycle snapshot and fans every new one out to the
// connected websocket clients. Observe never blocks on a slow client.
type Hub struct {
	mu      sync.RWMutex
	latest  []byte
	clients map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  log.With().Str("component", "status").Logger(),
	}
}

// Observe stores s as the latest snapshot and broadcasts it.
func (h *Hub) Observe(s types.CycleSnapshot) {
	h.Broadcast(s.ToJsonBytes())
}

func (h *Hub) Broadcast(msg []byte) {
	// Sends happen under the lock so Remove cannot close a channel mid-send.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = msg

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("Websocket client too slow, snapshot dropped")
		}
	}
}

// Latest returns the JSON of the last snapshot, or nil before the first cycle.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Add registers conn and starts its writer. The latest snapshot, if any, is
// sent first.
func (h *Hub) Add(conn *websocket.Conn) *Client {
	c := &Client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.mu.Unlock()

	go h.writeLoop(c)
	return c
}

// Remove unregisters c and closes its connection. Safe to call twice.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		close(c.send)
		c.conn.Close()
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait),
		)
		h.Remove(c)
	}
}

func (h *Hub) writeLoop(c *Client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug().Err(err).Msg("Websocket write failed, dropping client")
			h.Remove(c)
			return
		}
	}
}
