package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mindlog/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix = "user:%d"
	LogKeyPrefix  = "log:%d"
)

const (
	UserTTL = 5 * time.Minute
	LogTTL  = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func LogKey(logID uint) string {
	return fmt.Sprintf(LogKeyPrefix, logID)
}

// Aside reads key into dest, or calls fetch to fill dest and stores the
// result for ttl. Redis failures fall through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client != nil {
		raw, err := client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
				return nil
			}
		case !errors.Is(err, redis.Nil):
			middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	if err := fetch(); err != nil {
		return err
	}

	if client != nil {
		if b, err := json.Marshal(dest); err == nil {
			client.Set(ctx, key, b, ttl)
		}
	}
	return nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateLog(ctx context.Context, logID uint) {
	Invalidate(ctx, LogKey(logID))
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}
