package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/jackc/pgx/v5"
)

// LockoutRepository persists lock records and the escalation counter
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the lock record for an identity, or models.ErrNotFound
func (r *LockoutRepository) Get(ctx context.Context, identity string) (*models.LockoutRecord, error) {
	query := `
		SELECT identity, locked_at, unlock_at, failed_attempt_count, lockout_count
		FROM account_lockouts WHERE identity = $1
	`

	var rec models.LockoutRecord
	err := r.db.Pool.QueryRow(ctx, query, identity).Scan(
		&rec.Identity, &rec.LockedAt, &rec.UnlockAt, &rec.FailedAttemptCount, &rec.LockoutCount,
	)
	if err != nil {
		return nil, database.MapPostgresError("get lockout", err)
	}
	return &rec, nil
}

// CreateLock writes a lock record and bumps the escalation counter in one
// transaction holding the identity's advisory lock. If an unexpired lock already
// exists at lockedAt it is returned unchanged and created is false.
// durationFor maps the new lockout count to the lock length.
func (r *LockoutRepository) CreateLock(
	ctx context.Context,
	identity string,
	failedCount int,
	lockedAt time.Time,
	durationFor func(lockoutCount int) time.Duration,
) (rec *models.LockoutRecord, created bool, err error) {
	lockedAt = lockedAt.UTC()

	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identity); err != nil {
			return err
		}

		var existing models.LockoutRecord
		err := tx.QueryRow(ctx, `
			SELECT identity, locked_at, unlock_at, failed_attempt_count, lockout_count
			FROM account_lockouts WHERE identity = $1 AND unlock_at > $2
		`, identity, lockedAt).Scan(
			&existing.Identity, &existing.LockedAt, &existing.UnlockAt,
			&existing.FailedAttemptCount, &existing.LockoutCount,
		)
		if err == nil {
			rec = &existing
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		next := &models.LockoutRecord{
			Identity:           identity,
			LockedAt:           lockedAt,
			FailedAttemptCount: failedCount,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO lockout_counters (identity, lockout_count, updated_at)
			VALUES ($1, 1, $2)
			ON CONFLICT (identity) DO UPDATE
				SET lockout_count = lockout_counters.lockout_count + 1, updated_at = EXCLUDED.updated_at
			RETURNING lockout_count
		`, identity, lockedAt).Scan(&next.LockoutCount)
		if err != nil {
			return err
		}

		next.UnlockAt = next.LockedAt.Add(durationFor(next.LockoutCount))

		_, err = tx.Exec(ctx, `
			INSERT INTO account_lockouts (identity, locked_at, unlock_at, failed_attempt_count, lockout_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (identity) DO UPDATE SET
				locked_at = EXCLUDED.locked_at,
				unlock_at = EXCLUDED.unlock_at,
				failed_attempt_count = EXCLUDED.failed_attempt_count,
				lockout_count = EXCLUDED.lockout_count
		`, next.Identity, next.LockedAt, next.UnlockAt, next.FailedAttemptCount, next.LockoutCount)
		if err != nil {
			return err
		}

		rec = next
		created = true
		return nil
	})
	if err != nil {
		return nil, false, database.MapPostgresError("create lockout", err)
	}

	return rec, created, nil
}

// DeleteIfExpired removes the lock record only if it has run out at now.
// Returns true when a record was removed.
func (r *LockoutRepository) DeleteIfExpired(ctx context.Context, identity string, now time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM account_lockouts WHERE identity = $1 AND unlock_at <= $2`,
		identity, now.UTC(),
	)
	if err != nil {
		return false, database.MapPostgresError("delete expired lockout", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Clear deletes the lock record, resets the escalation counter and stamps
// cleared_at so earlier failures stop counting
func (r *LockoutRepository) Clear(ctx context.Context, identity string, at time.Time) error {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM account_lockouts WHERE identity = $1`, identity); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO lockout_counters (identity, lockout_count, cleared_at, updated_at)
			VALUES ($1, 0, $2, $2)
			ON CONFLICT (identity) DO UPDATE
				SET lockout_count = 0, cleared_at = EXCLUDED.cleared_at, updated_at = EXCLUDED.updated_at
		`, identity, at.UTC())
		return err
	})
	return database.MapPostgresError("clear lockout", err)
}

// ClearedAt returns when identity was last cleared, or the zero time
func (r *LockoutRepository) ClearedAt(ctx context.Context, identity string) (time.Time, error) {
	var clearedAt *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT cleared_at FROM lockout_counters WHERE identity = $1`, identity,
	).Scan(&clearedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, database.MapPostgresError("get lockout clear time", err)
	}
	if clearedAt == nil {
		return time.Time{}, nil
	}
	return clearedAt.UTC(), nil
}

// DeleteExpired removes every lock record that has run out. Storage hygiene only.
func (r *LockoutRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM account_lockouts WHERE unlock_at <= $1`, now.UTC())
	if err != nil {
		return 0, database.MapPostgresError("delete expired lockouts", err)
	}
	return tag.RowsAffected(), nil
}
