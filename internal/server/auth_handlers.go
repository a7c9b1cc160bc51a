package server

import (
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Signup request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	return c.JSON(AuthResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.auth.Revoke(c.UserContext(), middleware.ClaimsFrom(c)); err != nil {
		return respondServiceError(c, models.NewUnavailableError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), middleware.UserIDFrom(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}
