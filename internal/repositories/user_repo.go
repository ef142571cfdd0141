package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/pkg/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dummyHash is compared against when the email is unknown so both paths pay for bcrypt
var dummyHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("warden-dummy-password")
	return hash
})

// UserRepository is the local identity store and credential provider
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordChangedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.Status, &passwordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError("scan user", err)
	}
	user.PasswordChangedAt = passwordChangedAt

	return &user, nil
}

const userColumns = `id, email, password_hash, name, role, status, password_changed_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	user.Email = models.NormalizeIdentity(user.Email)

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "user"
	}
	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, models.NormalizeIdentity(email)))
}

// Lookup resolves an email to an active identity, or models.ErrNotFound
func (r *UserRepository) Lookup(ctx context.Context, email string) (*models.Identity, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Status != "active" {
		return nil, models.ErrNotFound
	}
	return user.ToIdentity(), nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords both return models.ErrUnauthorized.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	user, err := r.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		_ = auth.ComparePassword(dummyHash(), password)
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, models.ErrUnauthorized
	}
	if user.Status != "active" {
		return nil, models.ErrUnauthorized
	}

	return user.ToIdentity(), nil
}

// UpdateCredential hashes and stores a new password for the identity
func (r *UserRepository) UpdateCredential(ctx context.Context, identity, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, password_changed_at = $2, updated_at = $2 WHERE email = $3`,
		hash, now, identity,
	)
	if err != nil {
		return database.MapPostgresError("update credential", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
