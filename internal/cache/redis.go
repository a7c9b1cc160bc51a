// Package cache provides Redis caching utilities and the in-process graph
// cache.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mindlog/internal/middleware"
	"mindlog/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewClient parses addr (host:port or redis:// URL) and returns a client
// with the metrics hook installed. It does not connect.
func NewClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	c := redis.NewClient(opts)
	c.AddHook(metricsHook{})
	return c, nil
}

// InitRedis connects the shared cache client. A failure leaves caching
// disabled rather than failing startup.
func InitRedis(addr string) *redis.Client {
	c, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("Redis connection warning: invalid REDIS_URL (continuing without cache)",
			slog.String("addr", addr), slog.String("error", err.Error()))
		client = nil
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Redis connection warning (continuing without cache)", slog.String("error", err.Error()))
		_ = c.Close()
		client = nil
		return nil
	}
	middleware.Logger.Info("Redis connected successfully")
	client = c
	return c
}

// SetClient replaces the shared client. Tests use it with miniredis.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}
