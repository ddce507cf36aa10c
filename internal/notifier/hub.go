package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const broadcastBuffer = 256

// Hub tracks connected subscribers and fans events out to them.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event

	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, broadcastBuffer),
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the CORS middleware upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run owns the client set until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("Subscriber connected", zap.Int("active", count))
			c.enqueue(NewEvent(EventConnected, map[string]interface{}{
				"message":            "Successfully connected to notification service",
				"active_connections": count,
			}))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("Subscriber disconnected", zap.Int("active", count))

		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

// Broadcast queues an event for delivery to every subscriber. It never
// blocks the caller; when the queue is full the event is dropped.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast queue full, event dropped",
			zap.String("type", string(event.Type)))
	}
}

// ConnectionCount returns the number of active subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades an HTTP request into a subscriber connection.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(h, conn)
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (h *Hub) fanOut(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow subscriber; drop the event rather than block fan-out.
			h.logger.Warn("Subscriber send buffer full, event dropped")
		}
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
