package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"relay-chat/internal/events"
	"relay-chat/internal/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FanoutChannel carries room and global events between server processes.
const FanoutChannel = "relay:fanout"

// Relay forwards encoded events to every server process, this one included.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type fanoutFrame struct {
	Kind    events.TargetKind `json:"kind"`
	Room    uuid.UUID         `json:"room"`
	ConnID  string            `json:"connId,omitempty"`
	Event   string            `json:"event"`
	Payload json.RawMessage   `json:"payload"`
}

// Hub is the connection registry. Each connection is in at most one room; joining a room
// leaves the previous one first.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[uuid.UUID]map[string]*Client
	relay   Relay
	logger  *WebSocketLogger
}

func NewHub(logger *WebSocketLogger) *Hub {
	if logger == nil {
		logger = NewWebSocketLogger(nil)
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[uuid.UUID]map[string]*Client),
		logger:  logger,
	}
}

// SetRelay routes room and global events through r instead of delivering them directly.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Run blocks until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.closeConn()
	}
	return nil
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// Unregister drops the client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.leaveLocked(client)
	delete(h.clients, client.ID)
	close(client.send)
}

func (h *Hub) Join(connID string, room uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	h.leaveLocked(client)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][connID] = client
	client.room = room
	client.inRoom = true
}

func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[connID]; ok {
		h.leaveLocked(client)
	}
}

func (h *Hub) leaveLocked(client *Client) {
	if !client.inRoom {
		return
	}
	if members, ok := h.rooms[client.room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = uuid.Nil
	client.inRoom = false
}

func (h *Hub) CurrentRoom(connID string) (uuid.UUID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok || !client.inRoom {
		return uuid.Nil, false
	}
	return client.room, true
}

func (h *Hub) RoomUsers(room uuid.UUID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	var users []string
	for _, c := range h.rooms[room] {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			users = append(users, c.UserID)
		}
	}
	return users
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes data as an event frame and sends it to target.
func (h *Hub) Publish(target events.Target, event string, data interface{}) {
	payload, err := events.Encode(event, data)
	if err != nil {
		h.logger.Error("encode failed", "", target.ConnID, err, zap.String("msg_type", event))
		return
	}

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()

	if relay != nil && target.Kind != events.TargetConnection {
		frame, err := json.Marshal(fanoutFrame{
			Kind:    target.Kind,
			Room:    target.Room,
			ConnID:  target.ConnID,
			Event:   event,
			Payload: payload,
		})
		if err == nil {
			if err = relay.Publish(context.Background(), FanoutChannel, frame); err == nil {
				return
			}
		}
		h.logger.Warn("relay publish failed, delivering locally", "", target.ConnID, zap.String("msg_type", event), zap.Error(err))
	}
	h.Deliver(target, event, payload)
}

// Deliver pushes an encoded frame to the local connections selected by target.
func (h *Hub) Deliver(target events.Target, event string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch target.Kind {
	case events.TargetConnection:
		if c, ok := h.clients[target.ConnID]; ok {
			h.sendLocked(c, event, payload)
		}
	case events.TargetRoom, events.TargetRoomExcept:
		for id, c := range h.rooms[target.Room] {
			if target.Kind == events.TargetRoomExcept && id == target.ConnID {
				continue
			}
			h.sendLocked(c, event, payload)
		}
	case events.TargetAll:
		for _, c := range h.clients {
			h.sendLocked(c, event, payload)
		}
	}
}

func (h *Hub) sendLocked(c *Client, event string, payload []byte) {
	if !c.SendMessage(payload) {
		h.logger.Warn("client send buffer full", c.UserID, c.ID, zap.String("msg_type", event))
		return
	}
	observability.IncWSOutbound(event)
}
