package services

import (
	"context"
	"time"

	"github.com/BradenHooton/warden/internal/models"
)

// AttemptLedger is the durable append-only record of failed attempts
type AttemptLedger struct {
	repo AttemptRepository
	now  Clock
}

// NewAttemptLedger creates a new AttemptLedger
func NewAttemptLedger(repo AttemptRepository, now Clock) *AttemptLedger {
	if now == nil {
		now = utcNow
	}
	return &AttemptLedger{repo: repo, now: now}
}

// Record appends a failed attempt at the current time. Duplicates are counted independently.
func (l *AttemptLedger) Record(ctx context.Context, identity, source string) error {
	if err := l.repo.Insert(ctx, models.NormalizeIdentity(identity), sourceOrDefault(source), l.now()); err != nil {
		return models.NewStorageError("record failed attempt", err)
	}
	return nil
}

// RecentAttempts returns attempts within [now-window, now], oldest first
func (l *AttemptLedger) RecentAttempts(ctx context.Context, identity string, window time.Duration) ([]models.FailedAttempt, error) {
	now := l.now()
	attempts, err := l.repo.ListBetween(ctx, models.NormalizeIdentity(identity), now.Add(-window), now)
	if err != nil {
		return nil, models.NewStorageError("list failed attempts", err)
	}
	return attempts, nil
}

// RecordAndCount appends an attempt and returns the count within the window atomically
func (l *AttemptLedger) RecordAndCount(ctx context.Context, identity, source string, window time.Duration) (int, error) {
	now := l.now()
	count, err := l.repo.InsertAndCount(ctx, models.NormalizeIdentity(identity), sourceOrDefault(source), now, now.Add(-window))
	if err != nil {
		return 0, models.NewStorageError("record failed attempt", err)
	}
	return count, nil
}

func sourceOrDefault(source string) string {
	if source == "" {
		return models.AttemptSourceLogin
	}
	return source
}
