package server

import (
	"encoding/json"

	"mindlog/internal/middleware"
	"mindlog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// countsSnapshot is the first frame on a log socket, so clients start from
// current counts before events arrive.
type countsSnapshot struct {
	Type          string `json:"type"`
	LogID         uint   `json:"log_id"`
	CommentsCount int64  `json:"comments_count"`
	LikesCount    int64  `json:"likes_count"`
}

// LogWebSocketUpgrade rejects non-upgrade requests and logs the caller may
// not read, before the connection is hijacked.
func (s *Server) LogWebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	logID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	l, err := s.logService.Get(c.UserContext(), logID, middleware.UserIDFrom(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	c.Locals("log", l)
	return c.Next()
}

// LogWebSocketHandler streams comment and like events for one log.
func (s *Server) LogWebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		l, ok := conn.Locals("log").(*models.Log)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.logHub.Register(l.ID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "log_id", l.ID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		snapshot, _ := json.Marshal(countsSnapshot{
			Type:          "snapshot",
			LogID:         l.ID,
			CommentsCount: l.CommentsCount,
			LikesCount:    l.LikesCount,
		})
		client.TrySend(snapshot)

		go client.WritePump()
		client.ReadPump()
	})
}
