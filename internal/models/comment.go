package models

import "time"

// AnonymousAuthorName is recorded when a commenter has no display name.
const AnonymousAuthorName = "Anonymous User"

// CommentCategory classifies a comment's topic.
type CommentCategory string

const (
	CategoryPolitics   CommentCategory = "politics"
	CategorySocial     CommentCategory = "social"
	CategoryEconomy    CommentCategory = "economy"
	CategoryTechnology CommentCategory = "technology"
	CategoryOther      CommentCategory = "other"
)

// CommentCategories lists every accepted category in display order.
var CommentCategories = []CommentCategory{
	CategoryPolitics,
	CategorySocial,
	CategoryEconomy,
	CategoryTechnology,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c CommentCategory) Valid() bool {
	for _, known := range CommentCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Comment is an immutable remark left on a log.
type Comment struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	LogID      uint            `gorm:"not null;index:idx_comment_log_created,priority:1" json:"log_id"`
	UserID     uint            `gorm:"not null;index" json:"user_id"`
	AuthorName string          `gorm:"not null" json:"author_name"`
	Category   CommentCategory `gorm:"type:varchar(32);not null" json:"category"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time       `gorm:"index:idx_comment_log_created,priority:2,sort:desc" json:"created_at"`
}
