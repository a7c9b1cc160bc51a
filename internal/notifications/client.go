package notifications

import (
	"time"

	"mindlog/internal/middleware"
	"mindlog/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Live log sockets are receive-only; peers only send control frames.
	maxMessageSize = 1024

	sendBuffer = 64
)

var dropNotice = []byte(`{"type":"events_dropped","payload":{"reason":"buffer_full"}}`)

// WSHub is implemented by hubs that own Clients.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client sits between one websocket connection and its hub room.
type Client struct {
	Hub WSHub

	// The websocket connection. Nil in tests that only exercise the hub.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// LogID is the room this client listens to.
	LogID uint
}

// NewClient creates a Client for logID.
func NewClient(hub WSHub, conn *websocket.Conn, logID uint) *Client {
	return &Client{
		Hub:   hub,
		Conn:  conn,
		LogID: logID,
		Send:  make(chan []byte, sendBuffer),
	}
}

// ReadPump drains control frames until the peer goes away, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("websocket read error", "log_id", c.LogID, "error", err)
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full buffer drops the message
// and tries to tell the client so it can re-fetch counts.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped event", "log_id", c.LogID, "hub", c.Hub.Name())
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}
