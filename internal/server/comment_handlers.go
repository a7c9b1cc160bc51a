package server

import (
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/logs/:id/comments
// @Summary Comment on a log
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Log ID"
// @Param request body object{category=string,content=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /logs/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	logID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Category string `json:"category"`
		Content  string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	username, _ := c.Locals("username").(string)
	created, err := s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		LogID:      logID,
		UserID:     middleware.UserIDFrom(c),
		AuthorName: username,
		Category:   models.CommentCategory(req.Category),
		Content:    req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListComments handles GET /api/logs/:id/comments
// @Summary Comments on a log, newest first
// @Tags comments
// @Produce json
// @Param id path int true "Log ID"
// @Success 200 {array} models.Comment
// @Router /logs/{id}/comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	logID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	comments, err := s.commentService.List(c.UserContext(), logID, middleware.UserIDFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comments)
}
