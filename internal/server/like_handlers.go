package server

import (
	"mindlog/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// LikeResponse reports the caller's like state after a toggle.
type LikeResponse struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// ToggleLike handles POST /api/logs/:id/like
// @Summary Like or unlike a log
// @Tags likes
// @Security BearerAuth
// @Produce json
// @Param id path int true "Log ID"
// @Success 200 {object} LikeResponse
// @Router /logs/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	logID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, count, err := s.likeService.Toggle(c.UserContext(), middleware.UserIDFrom(c), logID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(LikeResponse{Liked: liked, LikesCount: count})
}
