package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// client is one registered connection with its write lock; gorilla conns
// allow a single concurrent writer.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the feed connections of signed-in users, keyed by user id. A
// user may hold several connections (tabs, devices); every one gets each
// envelope.
type Hub struct {
	mu    sync.RWMutex
	users map[int]map[*websocket.Conn]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{users: make(map[int]map[*websocket.Conn]*client)}
}

// AddClient registers a connection for a user.
func (h *Hub) AddClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*websocket.Conn]*client)
	}
	h.users[userID][conn] = &client{conn: conn, info: info}
}

// RemoveClient drops a connection.
func (h *Hub) RemoveClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
}

// ConnectionCount reports how many connections a user holds.
func (h *Hub) ConnectionCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// SendToUser marshals an envelope and writes it to every connection of the
// user. Dead connections are closed and removed.
func (h *Hub) SendToUser(userID int, envelope Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("op", envelope.Op).Msg("envelope marshal failed")
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			log.Warn().Err(err).Int("user_id", userID).Msg("websocket write error")
			c.conn.Close()
			h.RemoveClient(userID, c.conn)
			observability.IncWSEvent("ws_error")
		}
	}
}

// DeliverNotification implements the notifier sink on top of the feed.
func (h *Hub) DeliverNotification(userID int, n models.Notification) {
	h.SendToUser(userID, Envelope{Op: OpNotification, Notification: &n})
}
