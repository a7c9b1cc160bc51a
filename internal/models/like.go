package models

import (
	"time"
)

// Like represents a user's like on a log.
// The combination of UserID and LogID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_log" json:"user_id"`
	LogID     uint      `gorm:"not null;uniqueIndex:idx_user_log;index" json:"log_id"`
	CreatedAt time.Time `json:"created_at"`
}
