// Package service holds the application services that sit between the HTTP
// handlers and the repositories.
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"path"
	"strings"

	"mindlog/internal/config"
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/observability"
	"mindlog/internal/storage"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 5
	DefaultImageMaxDimension    = 2048
	WebPQuality                 = 80
)

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// UploadedImage describes a stored, re-encoded image.
type UploadedImage struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
}

// ImageUploader is what the log service needs from image handling.
type ImageUploader interface {
	Upload(ctx context.Context, in UploadImageInput) (*UploadedImage, error)
	// Owns reports whether url points into the store and, if so, whether
	// it lies under ownerID's prefix.
	Owns(ownerID uint, url string) (managed, owned bool)
	Remove(ctx context.Context, ownerID uint, url string)
}

type ImageService struct {
	store              storage.Store
	maxUploadSizeBytes int64
	maxDimension       int
}

func NewImageService(store storage.Store, cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	maxDimension := DefaultImageMaxDimension
	if cfg != nil {
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
		if cfg.ImageMaxDimension > 0 {
			maxDimension = cfg.ImageMaxDimension
		}
	}
	return &ImageService{
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		maxDimension:       maxDimension,
	}
}

// Upload validates, downsizes and re-encodes an image as WebP, then stores
// it under logs/<userID>/<uuid>.webp. Every upload gets its own blob, even
// for identical bytes.
func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (*UploadedImage, error) {
	img, err := s.upload(ctx, in)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		if models.StatusFor(err) >= http.StatusInternalServerError {
			outcome = "failed"
		}
	}
	observability.ImageUploads.WithLabelValues(outcome).Inc()
	return img, err
}

func (s *ImageService) upload(ctx context.Context, in UploadImageInput) (*UploadedImage, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewUploadError("No file uploaded", nil)
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewUploadError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)), nil)
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewUploadError("Invalid image type (jpeg, png or webp)", nil)
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detectedType) {
		return nil, models.NewUploadError("Image content type mismatch", nil)
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewUploadError("Invalid image file", nil)
	}

	resized := resizeToFit(decoded, s.maxDimension, s.maxDimension)
	encoded, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("encode webp: %w", err))
	}

	objectPath := fmt.Sprintf("logs/%d/%s.webp", in.UserID, uuid.NewString())
	if err := s.store.Upload(ctx, objectPath, encoded); err != nil {
		return nil, models.NewUploadError("Failed to store image", err)
	}

	b := resized.Bounds()
	return &UploadedImage{
		URL:       s.store.URL(objectPath),
		Path:      objectPath,
		Width:     b.Dx(),
		Height:    b.Dy(),
		SizeBytes: len(encoded),
	}, nil
}

func (s *ImageService) Owns(ownerID uint, url string) (managed, owned bool) {
	objectPath, ok := s.store.PathFromURL(url)
	if !ok {
		return false, false
	}
	clean := "/" + objectPath
	return true, ownerID != 0 && path.Clean(clean) == clean && strings.HasPrefix(clean, ownerPrefix(ownerID))
}

// Remove deletes a blob previously uploaded by ownerID. URLs outside the
// store or outside the owner's prefix are left alone.
func (s *ImageService) Remove(ctx context.Context, ownerID uint, url string) {
	if _, owned := s.Owns(ownerID, url); !owned {
		return
	}
	objectPath, _ := s.store.PathFromURL(url)
	if err := s.store.Delete(ctx, objectPath); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove image blob", "path", objectPath, "error", err)
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if scaleH := float64(maxHeight) / float64(h); scaleH < scale {
		scale = scaleH
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func ownerPrefix(ownerID uint) string {
	return fmt.Sprintf("/logs/%d/", ownerID)
}
