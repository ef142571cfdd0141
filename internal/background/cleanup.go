package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one periodic purge. Run returns the number of rows or entries removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// ExpiredLockoutPurger deletes lockout records whose unlock time has passed
type ExpiredLockoutPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AttemptPurger deletes failed-attempt entries older than a cutoff
type AttemptPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReplayPruner drops consumed reset-token ids that have expired
type ReplayPruner interface {
	Prune(ctx context.Context) (int, error)
}

// ExpiredLockoutsTask removes lock records that nobody has read since they expired.
// Lockout counters are kept so escalation survives the purge.
func ExpiredLockoutsTask(repo ExpiredLockoutPurger, now func() time.Time) Task {
	return Task{
		Name: "expired_lockouts",
		Run: func(ctx context.Context) (int64, error) {
			return repo.DeleteExpired(ctx, now())
		},
	}
}

// StaleAttemptsTask removes ledger entries older than retention
func StaleAttemptsTask(repo AttemptPurger, retention time.Duration, now func() time.Time) Task {
	return Task{
		Name: "stale_attempts",
		Run: func(ctx context.Context) (int64, error) {
			return repo.DeleteBefore(ctx, now().Add(-retention))
		},
	}
}

// ReplayGuardTask prunes an in-process replay guard
func ReplayGuardTask(guard ReplayPruner) Task {
	return Task{
		Name: "reset_token_replay",
		Run: func(ctx context.Context) (int64, error) {
			n, err := guard.Prune(ctx)
			return int64(n), err
		},
	}
}

// CleanupManager periodically runs purge tasks against the security stores
type CleanupManager struct {
	tasks    []Task
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, tasks ...Task) *CleanupManager {
	return &CleanupManager{
		tasks:    tasks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup loop. It blocks until Stop or ctx is done.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce runs every task a single time. A failing task does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	for _, task := range cm.tasks {
		cm.run(ctx, task)
	}
}

func (cm *CleanupManager) run(ctx context.Context, task Task) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := task.Run(cleanupCtx)
	if err != nil {
		cm.logger.Error("cleanup task failed", slog.String("task", task.Name), slog.Any("error", err))
		return
	}

	if removed > 0 {
		cm.logger.Info("cleanup task completed", slog.String("task", task.Name), slog.Int64("removed", removed))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
