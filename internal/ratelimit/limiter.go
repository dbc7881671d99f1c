package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

// CounterStore increments a windowed counter and reports the new count.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounterStore implements CounterStore with fixed windows in Redis.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps a Redis client as a counter store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// Incr increments the counter for key, setting the window TTL on first hit.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Limiter enforces a fixed-window request quota per client IP.
type Limiter struct {
	store  CounterStore
	logger *zap.Logger
}

// NewLimiter creates a Limiter backed by the given counter store.
func NewLimiter(store CounterStore, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Handle returns a fiber middleware allowing max requests per window,
// keyed by scope and client IP. Counter store failures let the request
// through so a Redis outage does not take the API down with it.
func (l *Limiter) Handle(scope string, max int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if max <= 0 {
			return c.Next()
		}
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, c.IP(), bucket)
		count, err := l.store.Incr(c.UserContext(), key, window)
		if err != nil {
			l.logger.Warn("rate limit counter unavailable, allowing request",
				zap.String("scope", scope), zap.Error(err))
			return c.Next()
		}
		if count > int64(max) {
			return apperrors.NewRateLimited("rate limit exceeded", int(window.Seconds()))
		}
		return c.Next()
	}
}
