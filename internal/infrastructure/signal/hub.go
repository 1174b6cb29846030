package signal

import (
	"fmt"
	"sync"
	"time"

	"parley/internal/core/domain"
	"parley/internal/core/ports"

	"github.com/gorilla/websocket"
)

// client is one registered websocket connection. Writes are serialized with a
// per-client mutex; gorilla connections allow at most one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub maps connection IDs to websocket connections and delivers outbound
// events to them. It implements ports.EventSink.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ConnectionID]*client

	writeTimeout time.Duration
}

var _ ports.EventSink = (*Hub)(nil)

func NewHub(writeTimeout time.Duration) *Hub {
	return &Hub{
		clients:      make(map[domain.ConnectionID]*client),
		writeTimeout: writeTimeout,
	}
}

// Add registers a connection under its ID. Reports whether the ID was free;
// the caller rejects the connection when it was not.
func (h *Hub) Add(connID domain.ConnectionID, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[connID]; exists {
		return false
	}
	h.clients[connID] = &client{conn: conn}
	return true
}

// Remove drops the connection from the hub. Idempotent.
func (h *Hub) Remove(connID domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
}

// Send delivers one event to one connection. A missing connection is an error
// the caller may log and otherwise ignore.
func (h *Hub) Send(connID domain.ConnectionID, event domain.Event) error {
	h.mu.RLock()
	c, exists := h.clients[connID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("connection %s not registered", connID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return c.conn.WriteJSON(event)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
