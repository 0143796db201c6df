package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/noehblabla33-a11y/frigo/internal/engine"
	"github.com/noehblabla33-a11y/frigo/internal/model"
)

// Message is one frame pushed to presentation clients.
type Message struct {
	Type     string           `json:"type"` // "state", "sync_ack" or "error"
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Ack      *model.SyncAck   `json:"ack,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// StateMessage wraps an engine snapshot for broadcast.
func StateMessage(snap engine.Snapshot) Message {
	return Message{Type: "state", Snapshot: &snap}
}

// AckMessage wraps a sync acknowledgement for broadcast.
func AckMessage(ack *model.SyncAck) Message {
	return Message{Type: "sync_ack", Ack: ack}
}

// ErrorMessage wraps a propagated failure for broadcast.
func ErrorMessage(err error) Message {
	return Message{Type: "error", Error: err.Error()}
}

// Intent is a user command received from a presentation client.
type Intent struct {
	Action   string  `json:"action"` // load, refresh, toggle, quantity, delete, sync, clear
	ID       int64   `json:"id,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
}

// IntentHandler executes one presentation intent.
type IntentHandler func(Intent)

// Hub maintains the set of active WebSocket clients, broadcasts state
// frames to them, and routes their intents to the handler.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	handler IntentHandler
	logger  *slog.Logger
}

// NewHub creates a Hub. The handler may be nil, in which case incoming
// intents are dropped.
func NewHub(handler IntentHandler, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		handler: handler,
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

func marshal(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (h *Hub) dispatch(data []byte) {
	if h.handler == nil {
		return
	}

	var intent Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		h.logger.Warn("malformed intent", "error", err)
		return
	}
	h.handler(intent)
}
