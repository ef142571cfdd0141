package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/metrics"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Rate limiter stores
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// RateLimiter is a keyed fixed-window call-volume throttle. The window opens on
// the first call for a key; once the count exceeds the limit the key is limited
// until the window expires. Keys are chosen by callers.
type RateLimiter struct {
	limiter *limiter.Limiter
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewRateLimiter creates a limiter over store
func NewRateLimiter(store limiter.Store, limit int64, window time.Duration, recorder metrics.Recorder, logger *slog.Logger) *RateLimiter {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &RateLimiter{
		limiter: limiter.New(store, limiter.Rate{Period: window, Limit: limit}),
		metrics: recorder,
		logger:  logger,
	}
}

// NewMemoryRateLimiter creates a process-local limiter
func NewMemoryRateLimiter(limit int64, window time.Duration, recorder metrics.Recorder, logger *slog.Logger) *RateLimiter {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "warden",
		CleanUpInterval: 5 * time.Minute,
	})
	return NewRateLimiter(store, limit, window, recorder, logger)
}

// NewRateLimiterFromConfig builds a memory or Redis backed limiter. The Redis
// client is returned so the caller can close it; it is nil for the memory store.
func NewRateLimiterFromConfig(ctx context.Context, cfg config.RateLimitConfig, recorder metrics.Recorder, logger *slog.Logger) (*RateLimiter, *redis.Client, error) {
	switch cfg.Store {
	case RateLimitStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}

		store, err := limiterRedis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix: "warden:ratelimit",
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to create Redis store: %w", err)
		}

		logger.Info("rate limiter using redis store", slog.String("addr", cfg.RedisAddr))
		return NewRateLimiter(store, cfg.Limit, cfg.Window, recorder, logger), client, nil

	default:
		return NewMemoryRateLimiter(cfg.Limit, cfg.Window, recorder, logger), nil, nil
	}
}

// IsLimited counts one call against key and reports whether the key is over its limit
func (l *RateLimiter) IsLimited(ctx context.Context, key string) (bool, error) {
	lctx, err := l.limiter.Get(ctx, key)
	if err != nil {
		return false, models.NewStorageError("rate limit", err)
	}

	if lctx.Reached {
		l.metrics.RecordRateLimited(scopeOf(key))
		l.logger.Debug("rate limit reached", slog.String("scope", scopeOf(key)))
	}
	return lctx.Reached, nil
}

// Allow returns models.ErrRateLimitExceeded when key is limited
func (l *RateLimiter) Allow(ctx context.Context, key string) error {
	limited, err := l.IsLimited(ctx, key)
	if err != nil {
		return err
	}
	if limited {
		return models.ErrRateLimitExceeded
	}
	return nil
}

// Status returns the current window for key without counting a call
func (l *RateLimiter) Status(ctx context.Context, key string) (models.RateLimitWindow, error) {
	lctx, err := l.limiter.Peek(ctx, key)
	if err != nil {
		return models.RateLimitWindow{}, models.NewStorageError("rate limit status", err)
	}

	return models.RateLimitWindow{
		Key:           key,
		Count:         lctx.Limit - lctx.Remaining,
		Limit:         lctx.Limit,
		WindowResetAt: time.Unix(lctx.Reset, 0).UTC(),
		Limited:       lctx.Reached,
	}, nil
}

// Reset discards the window for key
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	if _, err := l.limiter.Reset(ctx, key); err != nil {
		return models.NewStorageError("rate limit reset", err)
	}
	return nil
}

// scopeOf returns the key prefix before the first colon, used as a metric label
func scopeOf(key string) string {
	scope, _, _ := strings.Cut(key, ":")
	return scope
}

// Rate limit keys
func LoginIdentityKey(identity string) string { return "login:identity:" + identity }
func LoginIPKey(ip string) string             { return "login:ip:" + ip }
func ResetIdentityKey(identity string) string { return "reset:identity:" + identity }
func ResetIPKey(ip string) string             { return "reset:ip:" + ip }
