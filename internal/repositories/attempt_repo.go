package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/jackc/pgx/v5"
)

// AttemptRepository stores the append-only failed attempt ledger
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Insert appends a failed attempt
func (r *AttemptRepository) Insert(ctx context.Context, identity, source string, at time.Time) error {
	query := `INSERT INTO failed_attempts (identity, source, attempted_at) VALUES ($1, $2, $3)`

	_, err := r.db.Pool.Exec(ctx, query, identity, source, at.UTC())
	return database.MapPostgresError("insert failed attempt", err)
}

// ListBetween returns attempts for an identity in [from, to], oldest first
func (r *AttemptRepository) ListBetween(ctx context.Context, identity string, from, to time.Time) ([]models.FailedAttempt, error) {
	query := `
		SELECT id, identity, source, attempted_at FROM failed_attempts
		WHERE identity = $1 AND attempted_at >= $2 AND attempted_at <= $3
		ORDER BY attempted_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, identity, from.UTC(), to.UTC())
	if err != nil {
		return nil, database.MapPostgresError("list failed attempts", err)
	}

	attempts, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.FailedAttempt])
	if err != nil {
		return nil, database.MapPostgresError("scan failed attempts", err)
	}
	return attempts, nil
}

// InsertAndCount appends an attempt and counts attempts since from, holding a
// per-identity advisory lock so concurrent failures cannot both under-count.
func (r *AttemptRepository) InsertAndCount(ctx context.Context, identity, source string, at, from time.Time) (int, error) {
	var count int

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identity); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO failed_attempts (identity, source, attempted_at) VALUES ($1, $2, $3)`,
			identity, source, at.UTC(),
		); err != nil {
			return err
		}

		return tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM failed_attempts WHERE identity = $1 AND attempted_at >= $2 AND attempted_at <= $3`,
			identity, from.UTC(), at.UTC(),
		).Scan(&count)
	})
	if err != nil {
		return 0, database.MapPostgresError("record and count failed attempts", err)
	}

	return count, nil
}

// DeleteBefore prunes attempts older than cutoff. Attempts outside every window are inert.
func (r *AttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM failed_attempts WHERE attempted_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, database.MapPostgresError("prune failed attempts", err)
	}
	return tag.RowsAffected(), nil
}
