// Package bootstrap builds the process runtime shared by the server and
// the admin CLI.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"mindlog/internal/cache"
	"mindlog/internal/config"
	"mindlog/internal/database"
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/storage"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Runtime is the set of external dependencies a process needs.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client // nil when Redis is unreachable
	Store *storage.FSStore
}

// InitRuntime connects to the database and Redis and opens the blob store.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// May leave a nil client if Redis is unreachable.
	r := cache.InitRedis(cfg.RedisURL)

	store, err := storage.NewFSStore(cfg.StorageDir, cfg.MediaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	if err := ensureDevAdmin(cfg, db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	return &Runtime{DB: db, Redis: r, Store: store}, nil
}

// ensureDevAdmin creates or promotes DEV_ADMIN_EMAIL in development when a
// DEV_ADMIN_PASSWORD is configured.
func ensureDevAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.Env != "development" || cfg.DevAdminPassword == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.DevAdminEmail))
	if email == "" {
		email = "admin@mindlog.local"
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var admin models.User
		err := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, herr := bcrypt.GenerateFromPassword([]byte(cfg.DevAdminPassword), bcrypt.DefaultCost)
			if herr != nil {
				return fmt.Errorf("hash admin password: %w", herr)
			}
			admin = models.User{
				Username: "admin",
				Email:    email,
				Password: string(hash),
				IsAdmin:  true,
			}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
			middleware.Logger.Info("created development admin", "email", email)
			return nil
		case err != nil:
			return err
		default:
			return tx.Model(&admin).Update("is_admin", true).Error
		}
	})
}
