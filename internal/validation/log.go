package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"mindlog/internal/models"
)

const (
	MaxTitleLength       = 150
	MaxDescriptionLength = 5000
	MaxCaptionLength     = 200
	MaxCommentLength     = 1000
)

// ValidateTitle requires a non-blank title of at most MaxTitleLength runes.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLength)
	}
	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

// ValidateImages bounds the image list and its captions. The list is
// checked after normalization, so the main entry is not counted.
func ValidateImages(images []models.LogImage) error {
	supporting := 0
	for _, img := range images {
		if !img.IsMain {
			supporting++
		}
		if img.Caption != nil && utf8.RuneCountInString(*img.Caption) > MaxCaptionLength {
			return fmt.Errorf("image captions must be at most %d characters", MaxCaptionLength)
		}
		if img.HasURL() {
			if u, err := url.Parse(*img.URL); err != nil || (u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("image url %q is not a valid http(s) url", *img.URL)
			}
		}
	}
	if supporting > models.MaxSupportingImages {
		return fmt.Errorf("at most %d supporting images are allowed", models.MaxSupportingImages)
	}
	return nil
}

// ValidateCommentContent requires 1-1000 runes after trimming.
func ValidateCommentContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("comment cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxCommentLength {
		return fmt.Errorf("comment must be at most %d characters", MaxCommentLength)
	}
	return nil
}

func ValidateCommentCategory(category models.CommentCategory) error {
	if !category.Valid() {
		return fmt.Errorf("category must be one of politics, social, economy, technology or other")
	}
	return nil
}
