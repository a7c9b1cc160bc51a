package notifications

import (
	"context"
	"errors"
	"sync"

	"mindlog/internal/middleware"
	"mindlog/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections watching a single log
	maxConnsPerLog = 500
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrRoomFull   = errors.New("log connection limit reached")
	ErrHubClosed  = errors.New("hub is shut down")
)

// LogHub maps logID -> the clients watching that log.
type LogHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewLogHub creates an empty hub.
func NewLogHub() *LogHub {
	return &LogHub{rooms: make(map[uint]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *LogHub) Name() string { return "log hub" }

// Register adds a connection to the room for logID.
func (h *LogHub) Register(logID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}

	room, ok := h.rooms[logID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[logID] = room
	}
	if len(room) >= maxConnsPerLog {
		return nil, ErrRoomFull
	}

	client := NewClient(h, conn, logID)
	room[client] = struct{}{}
	h.totalConns++
	observability.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient removes client from its room and closes its send channel.
// Calling it twice is safe.
func (h *LogHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.LogID]
	if !ok {
		return
	}
	if _, exists := room[client]; !exists {
		return
	}
	delete(room, client)
	close(client.Send)
	h.totalConns--
	observability.ActiveWebSockets.Dec()
	if len(room) == 0 {
		delete(h.rooms, client.LogID)
	}
}

// Broadcast sends message to every client watching logID.
func (h *LogHub) Broadcast(logID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[logID]; ok {
		data := []byte(message)
		for c := range room {
			c.TrySend(data)
		}
	}
}

// RoomSize reports how many clients watch logID.
func (h *LogHub) RoomSize(logID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[logID])
}

// StartWiring feeds the hub from the notifier's pattern subscription.
func (h *LogHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartLogSubscriber(ctx, h.Broadcast)
}

// Shutdown closes every connection with CloseGoingAway. Later registrations
// fail with ErrHubClosed.
func (h *LogHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for logID, room := range h.rooms {
		for client := range room {
			if client.Conn != nil {
				if err := client.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
					middleware.Logger.Debug("failed to write close message", "log_id", logID, "error", err)
				}
				if err := client.Conn.Close(); err != nil {
					middleware.Logger.Debug("failed to close websocket", "log_id", logID, "error", err)
				}
			}
			close(client.Send)
			observability.ActiveWebSockets.Dec()
		}
	}
	h.rooms = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
