package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/models"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// Reasons a lock was cleared
const (
	ClearReasonLoginSuccess = "login_success"
	ClearReasonAdmin        = "admin"
	ClearReasonExpired      = "expired"
)

// LockoutService derives lock state from the attempt ledger and enforces progressive lockouts
type LockoutService struct {
	ledger      *AttemptLedger
	repo        LockoutRepository
	policy      config.LockoutConfig
	sinks       Sinks
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         Clock
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(
	ledger *AttemptLedger,
	repo LockoutRepository,
	policy config.LockoutConfig,
	sinks Sinks,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LockoutService {
	return &LockoutService{
		ledger:      ledger,
		repo:        repo,
		policy:      policy,
		sinks:       sinks.withDefaults(),
		logger:      logger,
		auditLogger: auditLogger,
		now:         utcNow,
	}
}

// SetClock replaces the time source
func (s *LockoutService) SetClock(now Clock) {
	s.now = now
}

// LockoutDuration returns min(base * multiplier^(lockoutCount-1), max)
func (s *LockoutService) LockoutDuration(lockoutCount int) time.Duration {
	if lockoutCount < 1 {
		lockoutCount = 1
	}

	d := s.policy.BaseLockout
	for i := 1; i < lockoutCount; i++ {
		d *= time.Duration(s.policy.Multiplier)
		if d >= s.policy.MaxLockout {
			return s.policy.MaxLockout
		}
	}
	if d > s.policy.MaxLockout {
		return s.policy.MaxLockout
	}
	return d
}

// CheckLocked reports whether identity is locked. An expired record is deleted
// on read and reported as unlocked.
func (s *LockoutService) CheckLocked(ctx context.Context, identity string) (models.LockStatus, error) {
	identity = models.NormalizeIdentity(identity)

	rec, err := s.repo.Get(ctx, identity)
	if errors.Is(err, models.ErrNotFound) {
		return models.LockStatus{}, nil
	}
	if err != nil {
		return models.LockStatus{}, models.NewStorageError("check lock", err)
	}

	now := s.now()
	if rec.IsExpired(now) {
		removed, err := s.repo.DeleteIfExpired(ctx, identity, now)
		if err != nil {
			return models.LockStatus{}, models.NewStorageError("expire lock", err)
		}
		if removed {
			s.sinks.Metrics.RecordLockoutCleared(ClearReasonExpired)
			s.logger.Info("lockout expired",
				slog.String("identity", pkglogger.SanitizedEmail(identity)),
				slog.Int("lockout_count", rec.LockoutCount))
		}
		return models.LockStatus{}, nil
	}

	return s.statusOf(rec, now), nil
}

// Evaluate locks identity when its recent failures reach the threshold.
// An existing unexpired lock is returned unchanged.
func (s *LockoutService) Evaluate(ctx context.Context, identity string) (models.LockStatus, error) {
	identity = models.NormalizeIdentity(identity)

	status, err := s.CheckLocked(ctx, identity)
	if err != nil || status.Locked {
		return status, err
	}

	window, err := s.window(ctx, identity)
	if err != nil {
		return models.LockStatus{}, err
	}

	attempts, err := s.ledger.RecentAttempts(ctx, identity, window)
	if err != nil {
		return models.LockStatus{}, models.NewStorageError("read recent attempts", err)
	}

	return s.lockIfOverThreshold(ctx, identity, len(attempts))
}

// RegisterFailure records a failed attempt and evaluates the lock in one step.
// The append and count are atomic per identity.
func (s *LockoutService) RegisterFailure(ctx context.Context, identity, source string) (models.LockStatus, error) {
	identity = models.NormalizeIdentity(identity)

	window, err := s.window(ctx, identity)
	if err != nil {
		return models.LockStatus{}, err
	}

	count, err := s.ledger.RecordAndCount(ctx, identity, source, window)
	if err != nil {
		return models.LockStatus{}, models.NewStorageError("record failed attempt", err)
	}
	s.sinks.Metrics.RecordFailedAttempt(sourceOrDefault(source))

	status, err := s.CheckLocked(ctx, identity)
	if err != nil || status.Locked {
		return status, err
	}

	return s.lockIfOverThreshold(ctx, identity, count)
}

// window is the attempt window, shortened so attempts before the last clear do not count
func (s *LockoutService) window(ctx context.Context, identity string) (time.Duration, error) {
	clearedAt, err := s.repo.ClearedAt(ctx, identity)
	if err != nil {
		return 0, models.NewStorageError("read lockout clear time", err)
	}
	if clearedAt.IsZero() {
		return s.policy.AttemptWindow, nil
	}
	// Attempts stamped at the clear instant itself are excluded
	if since := s.now().Sub(clearedAt) - time.Microsecond; since < s.policy.AttemptWindow {
		return since, nil
	}
	return s.policy.AttemptWindow, nil
}

func (s *LockoutService) lockIfOverThreshold(ctx context.Context, identity string, count int) (models.LockStatus, error) {
	if count < s.policy.MaxFailedAttempts {
		return models.LockStatus{}, nil
	}

	rec, err := s.Lock(ctx, identity, count)
	if err != nil {
		return models.LockStatus{}, err
	}
	return s.statusOf(rec, s.now()), nil
}

// Lock creates a lock record using the incremented lockout count. When a
// concurrent failure already locked identity, that lock is returned unchanged.
func (s *LockoutService) Lock(ctx context.Context, identity string, failedCount int) (*models.LockoutRecord, error) {
	identity = models.NormalizeIdentity(identity)

	rec, created, err := s.repo.CreateLock(ctx, identity, failedCount, s.now(), s.LockoutDuration)
	if err != nil {
		return nil, models.NewStorageError("create lock", err)
	}
	if !created {
		return rec, nil
	}

	duration := rec.UnlockAt.Sub(rec.LockedAt)
	s.sinks.Metrics.RecordLockout(rec.LockoutCount, duration)
	s.auditLogger.LogLockout(ctx, identity, rec.UnlockAt, failedCount, rec.LockoutCount)
	s.logger.Warn("account locked",
		slog.String("identity", pkglogger.SanitizedEmail(identity)),
		slog.Int("failed_attempts", failedCount),
		slog.Int("lockout_count", rec.LockoutCount),
		slog.Duration("lockout_duration", duration))

	if err := s.sinks.Notifier.NotifyLockout(ctx, identity, rec.UnlockAt); err != nil {
		s.logger.Error("failed to send lockout notice",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
	}
	s.sinks.publish(ctx, s.logger, models.SecurityEvent{
		Type:       models.EventAccountLocked,
		Identity:   identity,
		OccurredAt: rec.LockedAt,
		Metadata: map[string]string{
			"unlock_at":       rec.UnlockAt.UTC().Format(time.RFC3339),
			"lockout_count":   strconv.Itoa(rec.LockoutCount),
			"failed_attempts": strconv.Itoa(failedCount),
		},
	})

	return rec, nil
}

// Clear deletes the lock record and resets escalation. Failures recorded before
// the clear stop counting. Called on successful login and reset.
func (s *LockoutService) Clear(ctx context.Context, identity string) error {
	identity = models.NormalizeIdentity(identity)

	if err := s.repo.Clear(ctx, identity, s.now()); err != nil {
		return models.NewStorageError("clear lock", err)
	}
	return nil
}

// Unlock is the administrative clear. It is audited and published.
func (s *LockoutService) Unlock(ctx context.Context, identity, clearedBy string) error {
	identity = models.NormalizeIdentity(identity)

	if err := s.Clear(ctx, identity); err != nil {
		return err
	}

	s.sinks.Metrics.RecordLockoutCleared(ClearReasonAdmin)
	s.auditLogger.LogLockoutCleared(ctx, identity, clearedBy)
	s.sinks.publish(ctx, s.logger, models.SecurityEvent{
		Type:       models.EventAccountUnlocked,
		Identity:   identity,
		OccurredAt: s.now(),
		Metadata:   map[string]string{"cleared_by": clearedBy},
	})
	return nil
}

func (s *LockoutService) statusOf(rec *models.LockoutRecord, now time.Time) models.LockStatus {
	unlockAt := rec.UnlockAt
	return models.LockStatus{
		Locked:           true,
		UnlockAt:         &unlockAt,
		RemainingMinutes: remainingMinutes(unlockAt.Sub(now)),
		LockoutCount:     rec.LockoutCount,
	}
}

// remainingMinutes rounds up so a lock with seconds left still reports one minute
func remainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
