package services

import (
	"context"
	"time"

	"github.com/BradenHooton/warden/internal/models"
)

// AttemptRepository persists the failed attempt ledger
type AttemptRepository interface {
	Insert(ctx context.Context, identity, source string, at time.Time) error
	ListBetween(ctx context.Context, identity string, from, to time.Time) ([]models.FailedAttempt, error)
	InsertAndCount(ctx context.Context, identity, source string, at, from time.Time) (int, error)
}

// LockoutRepository persists lock records and escalation counters
type LockoutRepository interface {
	Get(ctx context.Context, identity string) (*models.LockoutRecord, error)
	CreateLock(ctx context.Context, identity string, failedCount int, lockedAt time.Time, durationFor func(int) time.Duration) (*models.LockoutRecord, bool, error)
	DeleteIfExpired(ctx context.Context, identity string, now time.Time) (bool, error)
	Clear(ctx context.Context, identity string, at time.Time) error
	ClearedAt(ctx context.Context, identity string) (time.Time, error)
}

// SecurityQuestionRepository persists challenge questions
type SecurityQuestionRepository interface {
	ReplaceAll(ctx context.Context, identity string, questions []models.SecurityQuestion) error
	ListByIdentity(ctx context.Context, identity string) ([]models.SecurityQuestion, error)
}

// IdentityStore resolves emails to identities. Unknown emails yield models.ErrNotFound.
type IdentityStore interface {
	Lookup(ctx context.Context, email string) (*models.Identity, error)
}

// CredentialProvider owns the primary credential. It hashes and stores passwords itself.
type CredentialProvider interface {
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
	UpdateCredential(ctx context.Context, identity, newPassword string) error
}

// Notifier tells the account owner about security-relevant changes
type Notifier interface {
	NotifyLockout(ctx context.Context, identity string, unlockAt time.Time) error
	NotifyPasswordChanged(ctx context.Context, identity string) error
}

// EventPublisher emits security events to other systems
type EventPublisher interface {
	Publish(ctx context.Context, event models.SecurityEvent) error
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
