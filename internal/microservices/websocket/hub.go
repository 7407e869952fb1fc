package websocket

import (
	"log/slog"
	"sync"
)

// Hub keeps track of live stream clients so shutdown can close them.
// Clients never talk to each other, every stream is independent.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register: add client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	h.logger.Info("ws_client_registered", "client_id", c.ID, "active", len(h.clients))
}

// Unregister: remove client, no-op if already gone
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	h.logger.Info("ws_client_unregistered", "client_id", c.ID, "active", len(h.clients))
}

// Count: number of live stream clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll: close every client connection
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Close()
	}
}
