package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

const writeWait = 10 * time.Second

// client serialises writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// Hub manages active WebSocket connections keyed by user ID and fans events
// out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]*client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]*client),
	}
}

var _ domain.EventPublisher = (*Hub)(nil)

// Register adds a connection for the given user.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]*client)
	}
	h.conns[userID][conn] = &client{conn: conn}
}

// Unregister removes a connection for the given user.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Disconnect closes every connection userID holds. Their read loops end on
// the next read.
func (h *Hub) Disconnect(userID string) {
	h.mu.Lock()
	conns := h.conns[userID]
	delete(h.conns, userID)
	h.mu.Unlock()

	for _, c := range conns {
		c.close("session ended")
	}
	if len(conns) > 0 {
		log.Info().Str("user_id", userID).Int("connections", len(conns)).Msg("ws: session ended")
	}
}

// Connected reports how many connections userID holds.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

type target struct {
	userID string
	c      *client
}

func (h *Hub) targets(userIDs []string) []target {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var res []target
	if len(userIDs) == 0 {
		for uid, conns := range h.conns {
			for _, c := range conns {
				res = append(res, target{uid, c})
			}
		}
		return res
	}
	seen := make(map[string]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		for _, c := range h.conns[uid] {
			res = append(res, target{uid, c})
		}
	}
	return res
}

// SendToUsers writes payload to every connection of userIDs, or to everyone
// when userIDs is empty. Connections that fail a write are dropped.
func (h *Hub) SendToUsers(userIDs []string, payload any) {
	for _, t := range h.targets(userIDs) {
		if err := t.c.writeJSON(payload); err != nil {
			log.Debug().Err(err).Str("user_id", t.userID).Msg("ws: dropping connection")
			_ = t.c.conn.Close()
			h.Unregister(t.userID, t.c.conn)
		}
	}
}

// Publish delivers a committed change to the connected recipients.
func (h *Hub) Publish(_ context.Context, e domain.Event) error {
	h.SendToUsers(e.UserIDs, e)
	return nil
}
