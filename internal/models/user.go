// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an authenticated author of logs, comments and likes.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"unique;not null" json:"username"`
	Email     string    `gorm:"unique;not null" json:"email,omitempty"`
	Password  string    `gorm:"not null" json:"-"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the name shown next to authored content.
func (u *User) DisplayName() string {
	if u == nil || u.Username == "" {
		return AnonymousAuthorName
	}
	return u.Username
}
