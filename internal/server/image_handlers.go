package server

import (
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/images
// @Summary Upload an image
// @Description Stores a resized WebP copy and returns its URL
// @Tags images
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param image formData file true "Image file"
// @Success 201 {object} service.UploadedImage
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	content, err := readFormFile(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      middleware.UserIDFrom(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(uploaded)
}
