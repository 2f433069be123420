package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/manpreetbhatti/driftrace/backend/internal/ratelimit"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
)

type Config struct {
	SendBuffer        int
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
	// Denied calls tolerated before the client is disconnected
	MaxViolations int
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:        256,
		MaxMessageSize:    64 * 1024,
		MessagesPerSecond: 60,
		MessageBurst:      120,
		MaxViolations:     1000,
	}
}

// Hub tracks every live connection. Room fan-out happens in room.Group; the
// hub owns connection lifecycle so a dropped socket always runs the leave path.
type Hub struct {
	registry *room.Registry
	limiters *ratelimit.ClientLimiters
	config   Config
	logger   *slog.Logger

	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}
	mu   sync.RWMutex
}

func NewHub(registry *room.Registry, config Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:   registry,
		limiters:   ratelimit.NewClientLimiters(config.MessagesPerSecond, config.MessageBurst),
		config:     config,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Registry() *room.Registry {
	return h.registry
}

// Run processes register and unregister requests until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client connected", "connection_id", client.clientID, "total", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			clientCount := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.release(client)
				h.logger.Info("client disconnected", "connection_id", client.clientID, "remaining", clientCount)
			}
		}
	}
}

func (h *Hub) release(client *Client) {
	start := time.Now()
	client.session.Disconnect()
	client.closeSend()
	h.limiters.Remove(client.clientID.String())
	if d := time.Since(start); d > 100*time.Millisecond {
		h.logger.Warn("slow disconnect", "connection_id", client.clientID, "duration", d)
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for client := range clients {
		h.release(client)
		client.closeConn()
	}
	h.limiters.Stop()
	h.logger.Info("hub stopped", "closed", len(clients))
}

func (h *Hub) enter(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands c back to the hub, or releases it directly once Run has exited.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.session.Disconnect()
		c.closeSend()
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetRoomCount() int {
	return h.registry.Count()
}
