package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"

	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// uploadMeta describes the file at the same position in the multipart
// images field.
type uploadMeta struct {
	Caption string `json:"caption"`
	IsMain  bool   `json:"is_main"`
}

// logRequest is the body of create and update. Absent fields are nil so
// updates can be partial.
type logRequest struct {
	Title         *string            `json:"title"`
	Description   *string            `json:"description"`
	Images        *[]models.LogImage `json:"images"`
	RelatedLogIDs *[]uint            `json:"related_log_ids"`
	YoutubeLink   *string            `json:"youtube_link"`
	IsPublic      *bool              `json:"is_public"`
	Uploads       []uploadMeta       `json:"uploads"`
}

// parseLogRequest reads either a JSON body or a multipart form whose
// "payload" field holds the JSON and whose "images" files are uploads.
func parseLogRequest(c *fiber.Ctx) (logRequest, []service.ImageBlob, error) {
	var req logRequest
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&req); err != nil {
			return req, nil, models.NewValidationError("Invalid request body")
		}
		return req, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, models.NewValidationError("Invalid multipart form")
	}
	if payload := form.Value["payload"]; len(payload) > 0 {
		if err := json.Unmarshal([]byte(payload[0]), &req); err != nil {
			return req, nil, models.NewValidationError("Invalid payload field")
		}
	}

	files := form.File["images"]
	blobs := make([]service.ImageBlob, 0, len(files))
	for i, fh := range files {
		content, err := readFormFile(fh)
		if err != nil {
			return req, nil, models.NewValidationError("Unable to read uploaded file")
		}
		blob := service.ImageBlob{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     content,
		}
		if i < len(req.Uploads) {
			blob.Caption = req.Uploads[i].Caption
			blob.IsMain = req.Uploads[i].IsMain
		}
		blobs = append(blobs, blob)
	}
	return req, blobs, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}

// CreateLog handles POST /api/logs
// @Summary Create a log
// @Description JSON body, or multipart with a "payload" JSON field and "images" files
// @Tags logs
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} models.Log
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /logs [post]
func (s *Server) CreateLog(c *fiber.Ctx) error {
	req, blobs, err := parseLogRequest(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	in := service.CreateLogInput{
		OwnerID: middleware.UserIDFrom(c),
		Uploads: blobs,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Images != nil {
		in.Images = *req.Images
	}
	if req.RelatedLogIDs != nil {
		in.RelatedLogIDs = *req.RelatedLogIDs
	}
	if req.YoutubeLink != nil {
		in.YoutubeLink = *req.YoutubeLink
	}
	if req.IsPublic != nil {
		in.IsPublic = *req.IsPublic
	}

	created, err := s.logService.Create(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateLog handles PUT /api/logs/:id
// @Summary Update a log
// @Tags logs
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Log ID"
// @Success 200 {object} models.Log
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /logs/{id} [put]
func (s *Server) UpdateLog(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	req, blobs, err := parseLogRequest(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	updated, err := s.logService.Update(c.UserContext(), id, middleware.UserIDFrom(c), service.UpdateLogInput{
		Title:         req.Title,
		Description:   req.Description,
		Images:        req.Images,
		Uploads:       blobs,
		RelatedLogIDs: req.RelatedLogIDs,
		YoutubeLink:   req.YoutubeLink,
		IsPublic:      req.IsPublic,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(updated)
}

// DeleteLog handles DELETE /api/logs/:id
// @Summary Delete a log with its comments and likes
// @Tags logs
// @Security BearerAuth
// @Param id path int true "Log ID"
// @Success 204
// @Router /logs/{id} [delete]
func (s *Server) DeleteLog(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.logService.Delete(c.UserContext(), id, middleware.UserIDFrom(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetLog handles GET /api/logs/:id
// @Summary Get a log
// @Tags logs
// @Produce json
// @Param id path int true "Log ID"
// @Success 200 {object} models.Log
// @Failure 404 {object} models.ErrorResponse
// @Router /logs/{id} [get]
func (s *Server) GetLog(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	l, err := s.logService.Get(c.UserContext(), id, middleware.UserIDFrom(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(l)
}

// ListLogs handles GET /api/logs
// @Summary Public feed, newest first
// @Tags logs
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Log
// @Router /logs [get]
func (s *Server) ListLogs(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	logs, err := s.logService.ListPublic(c.UserContext(), page.Limit, page.Offset, middleware.UserIDFrom(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(logs)
}

// ListMyLogs handles GET /api/logs/mine
// @Summary The caller's logs, private ones included
// @Tags logs
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Log
// @Router /logs/mine [get]
func (s *Server) ListMyLogs(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	logs, err := s.logService.ListByOwner(c.UserContext(), middleware.UserIDFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(logs)
}

// ListLikedLogs handles GET /api/logs/liked
// @Summary Logs the caller liked
// @Tags logs
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Log
// @Router /logs/liked [get]
func (s *Server) ListLikedLogs(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	logs, err := s.logService.ListLiked(c.UserContext(), middleware.UserIDFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(logs)
}

// SearchLogs handles GET /api/logs/search?q=
// @Summary Search logs by text and by relation to matching logs
// @Tags logs
// @Produce json
// @Param q query string false "Query; empty lists every visible log"
// @Success 200 {array} models.Log
// @Router /logs/search [get]
func (s *Server) SearchLogs(c *fiber.Ctx) error {
	logs, err := s.logService.Search(c.UserContext(), c.Query("q"), middleware.UserIDFrom(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(logs)
}

// RelatedCandidates handles GET /api/logs/related-candidates
// @Summary Logs the caller may link as related
// @Tags logs
// @Security BearerAuth
// @Produce json
// @Param exclude query int false "Log being edited"
// @Success 200 {array} models.LogTitle
// @Router /logs/related-candidates [get]
func (s *Server) RelatedCandidates(c *fiber.Ctx) error {
	exclude := c.QueryInt("exclude", 0)
	if exclude < 0 {
		exclude = 0
	}
	out, err := s.logService.RelatedCandidates(c.UserContext(), middleware.UserIDFrom(c), uint(exclude))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(out)
}

// GetLogGraph handles GET /api/logs/:id/graph
// @Summary Mind-map graph of a log
// @Tags logs
// @Produce json
// @Param id path int true "Log ID"
// @Success 200 {object} graph.Graph
// @Failure 404 {object} models.ErrorResponse
// @Router /logs/{id}/graph [get]
func (s *Server) GetLogGraph(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	g, err := s.logService.Graph(c.UserContext(), id, middleware.UserIDFrom(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(g)
}
