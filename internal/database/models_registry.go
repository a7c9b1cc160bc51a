package database

import "mindlog/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Log{},
		&models.Comment{},
		&models.Like{},
	}
}
