package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/metrics"
)

const (
	TypeRoomDeactivated = "room_deactivated"
)

// ErrorPayload describes a failure delivered inline on the socket.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is a single frame sent to room clients.
type Message struct {
	Type       string         `json:"type"`
	Collection string         `json:"collection,omitempty"`
	RoomID     string         `json:"room_id"`
	Records    any            `json:"records,omitempty"`
	Error      *ErrorPayload  `json:"error,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message of the given type for a room.
func NewMessage(msgType, roomID string, extra map[string]any) Message {
	return Message{
		Type:   msgType,
		RoomID: roomID,
		Extra:  extra,
	}
}

// SnapshotMessage carries a full snapshot of a collection and its record count.
func SnapshotMessage(collection, roomID string, records any, count int) Message {
	return Message{
		Type:       collection + "_snapshot",
		Collection: collection,
		RoomID:     roomID,
		Records:    records,
		Extra:      map[string]any{"count": count},
	}
}

func ErrorMessage(collection, roomID string, err error) Message {
	ae := apperror.From(err)
	return Message{
		Type:       collection + "_error",
		Collection: collection,
		RoomID:     roomID,
		Error:      &ErrorPayload{Code: ae.ErrorCode(), Message: ae.Message()},
	}
}

// Hub maintains the set of active WebSocket clients grouped by room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebsocketClients(n)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebsocketClients(n)
}

// BroadcastRoom sends a message to every client of a room. Clients with a
// full buffer miss the message.
func (h *Hub) BroadcastRoom(roomID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.roomID != roomID {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.roomID == roomID {
			n++
		}
	}
	return n
}
