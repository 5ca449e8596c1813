// Package hub tracks which WebSocket connections belong to which user and
// fans messages out to them. State is process-scoped: entries exist only
// while the connection is open.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one live transport. ID makes the connection addressable on
// its own, so two tabs of the same user are distinct entries.
type Connection struct {
	ID     string
	UserID string
	Writer Writer
}

func NewConnection(userID string, w Writer) *Connection {
	return &Connection{ID: uuid.NewString(), UserID: userID, Writer: w}
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

// Register adds the connection to its user's set. The caller guarantees the
// writer is open; a registered connection must be writable.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.UserID] == nil {
		h.connections[conn.UserID] = make(map[*Connection]struct{})
	}
	h.connections[conn.UserID][conn] = struct{}{}
}

// Unregister removes the connection. Safe to call more than once.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.UserID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.UserID)
	}
}

// ConnectionsFor returns a snapshot of the user's open connections.
func (h *Hub) ConnectionsFor(userID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.connections[userID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast delivers the message to every connection of the user.
// Connections whose writer fails are closed and dropped from the registry.
func (h *Hub) Broadcast(userID string, message []byte) {
	conns := h.ConnectionsFor(userID)

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			log.Debug().Err(err).Str("conn_id", c.ID).Str("user_id", userID).
				Msg("dropping unwritable connection")
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
