package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaxSupportingImages bounds the non-main images of a log.
const MaxSupportingImages = 8

// LogImage is one entry of a log's ordered image list. URL is nil for
// caption-only entries.
type LogImage struct {
	URL     *string `json:"url"`
	IsMain  bool    `json:"is_main"`
	Caption *string `json:"caption"`
}

// HasURL reports whether the entry points at a stored blob.
func (i LogImage) HasURL() bool {
	return i.URL != nil && strings.TrimSpace(*i.URL) != ""
}

// HasCaption reports whether the entry carries a non-blank caption.
func (i LogImage) HasCaption() bool {
	return i.Caption != nil && strings.TrimSpace(*i.Caption) != ""
}

// Log is the shared mind-map entry.
type Log struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:150;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Images      []LogImage `gorm:"serializer:json;type:text" json:"images"`

	// RelatedLogIDs and RelatedLogTitles are positionally aligned. Titles are
	// a cache refreshed on save and by the title refresher job.
	RelatedLogIDs    []uint   `gorm:"serializer:json;type:text" json:"related_log_ids"`
	RelatedLogTitles []string `gorm:"serializer:json;type:text" json:"related_log_titles"`

	YoutubeLink string         `json:"youtube_link,omitempty"`
	IsPublic    bool           `gorm:"not null;default:false;index" json:"is_public"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Owner       User           `gorm:"foreignKey:OwnerID" json:"owner"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Computed at read time.
	YoutubeEmbedURL string `gorm:"-" json:"youtube_embed_url,omitempty"`
	LikesCount      int64  `gorm:"->;-:migration" json:"likes_count"`
	CommentsCount   int64  `gorm:"->;-:migration" json:"comments_count"`
	Liked           bool   `gorm:"->;-:migration" json:"liked"`
}

// VisibleTo reports whether viewerID may read the log. A zero viewer is
// anonymous.
func (l *Log) VisibleTo(viewerID uint) bool {
	return l.IsPublic || (viewerID != 0 && l.OwnerID == viewerID)
}

// MainImageURL returns the URL of the entry flagged as main, if any.
func (l *Log) MainImageURL() string {
	for _, img := range l.Images {
		if img.IsMain && img.HasURL() {
			return *img.URL
		}
	}
	return ""
}

// LogTitle is the id/title projection used for relation lookups.
type LogTitle struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// NormalizeImages enforces the image invariants: empty entries are
// dropped, at most one entry is main, and when no entry is flagged the
// first entry with a URL is promoted.
func NormalizeImages(images []LogImage) []LogImage {
	out := make([]LogImage, 0, len(images))
	mainIdx := -1
	for _, img := range images {
		if !img.HasURL() && !img.HasCaption() {
			continue
		}
		if !img.HasURL() {
			img.URL = nil
		}
		if !img.HasCaption() {
			img.Caption = nil
		}
		if img.IsMain {
			if mainIdx >= 0 || !img.HasURL() {
				img.IsMain = false
			} else {
				mainIdx = len(out)
			}
		}
		out = append(out, img)
	}
	if mainIdx < 0 {
		for i := range out {
			if out[i].HasURL() {
				out[i].IsMain = true
				break
			}
		}
	}
	return out
}
