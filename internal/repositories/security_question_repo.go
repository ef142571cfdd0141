package repositories

import (
	"context"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/jackc/pgx/v5"
)

// SecurityQuestionRepository stores per-identity challenge questions
type SecurityQuestionRepository struct {
	db *database.DB
}

// NewSecurityQuestionRepository creates a new SecurityQuestionRepository
func NewSecurityQuestionRepository(db *database.DB) *SecurityQuestionRepository {
	return &SecurityQuestionRepository{db: db}
}

// ReplaceAll swaps the identity's whole question set atomically
func (r *SecurityQuestionRepository) ReplaceAll(ctx context.Context, identity string, questions []models.SecurityQuestion) error {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM security_questions WHERE identity = $1`, identity); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, q := range questions {
			batch.Queue(`
				INSERT INTO security_questions (id, identity, position, prompt, answer_hash, salt, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, q.ID, identity, q.Position, q.Prompt, q.AnswerHash, q.Salt, q.CreatedAt.UTC())
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return database.MapPostgresError("replace security questions", err)
}

// ListByIdentity returns the identity's questions ordered by position
func (r *SecurityQuestionRepository) ListByIdentity(ctx context.Context, identity string) ([]models.SecurityQuestion, error) {
	query := `
		SELECT id, identity, position, prompt, answer_hash, salt, created_at
		FROM security_questions WHERE identity = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, identity)
	if err != nil {
		return nil, database.MapPostgresError("list security questions", err)
	}

	questions, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SecurityQuestion])
	if err != nil {
		return nil, database.MapPostgresError("scan security questions", err)
	}
	return questions, nil
}
