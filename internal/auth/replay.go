package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard records token ids so each can be consumed once
type ReplayGuard interface {
	// Consume marks jti as used until expiresAt. It returns false if jti was already used.
	Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

// MemoryReplayGuard is a process-local ReplayGuard with lazy expiry
type MemoryReplayGuard struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

// NewMemoryReplayGuard creates an empty MemoryReplayGuard
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		used: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemoryReplayGuard) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if until, ok := g.used[jti]; ok && g.now().Before(until) {
		return false, nil
	}
	g.used[jti] = expiresAt
	return true, nil
}

// Prune drops entries whose token has expired. Returns the number removed.
func (g *MemoryReplayGuard) Prune(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for jti, until := range g.used {
		if !now.Before(until) {
			delete(g.used, jti)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked ids
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.used)
}

// RedisReplayGuard shares consumed token ids across instances
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisReplayGuard creates a RedisReplayGuard
func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, prefix: "warden:reset-jti:"}
}

func (g *RedisReplayGuard) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	ok, err := g.client.SetNX(ctx, g.prefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record reset token use: %w", err)
	}
	return ok, nil
}
