package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/observability"
	"go.uber.org/zap"
)

// Hub is the single broadcast domain shared by all admitted connections.
// It implements chat.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

// Config describes the hub dependencies.
type Config struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Clock   func() time.Time
}

// New constructs an empty hub.
func New(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		metrics: cfg.Metrics,
		clock:   clock,
	}
}

// Register adds an admitted client and announces the join to all other
// connections. Announcements are ephemeral and never persisted.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Info("client joined",
		zap.String("username", client.identity.Username),
		zap.Int("connected", total))

	h.broadcastSystem(fmt.Sprintf("%s joined the chat", client.identity.Username), client)
}

// Unregister removes a client and announces the departure to the remaining
// connections. Safe to call more than once per client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, present := h.clients[client]
	if present {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !present {
		return
	}

	h.metrics.ConnectionClosed()
	h.logger.Info("client left",
		zap.String("username", client.identity.Username),
		zap.Int("connected", total))

	h.broadcastSystem(fmt.Sprintf("%s left the chat", client.identity.Username), nil)
}

// BroadcastMessage fans one accepted chat message out to every connection,
// including the submitter.
func (h *Hub) BroadcastMessage(message chat.Message) {
	h.metrics.MessageBroadcast()
	h.broadcast(MessageEvent(message), nil)
}

func (h *Hub) broadcastSystem(text string, except *Client) {
	h.broadcast(SystemEvent(text, h.clock().Unix()), except)
}

// broadcast queues the event under the read lock so a concurrent Unregister
// cannot close a send buffer mid-fanout.
func (h *Hub) broadcast(event ServerEvent, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client == except {
			continue
		}
		client.Queue(event)
	}
}

// ClientCount reports the number of currently admitted connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
