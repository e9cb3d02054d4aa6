package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scam-scanner/internal/models"
)

// UserRepository handles user data persistence. The unique constraint on the
// normalized email column is what guarantees at most one row per identity even
// under concurrent upserts.
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// ErrUserNotFound is returned when no row exists for the requested email
var ErrUserNotFound = errors.New("user not found")

// GetByEmail retrieves a user by normalized email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, is_admin, is_premium, subscribed_to_blog, requested_premium, joined_at, updated_at
		FROM users
		WHERE email = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.IsAdmin,
		&user.IsPremium,
		&user.SubscribedToBlog,
		&user.RequestedPremium,
		&user.JoinedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Upsert inserts the user row or merges the given flags over the existing one.
// Admin status only ever turns on through this path: the conflict branch ORs
// the incoming is_admin with the stored value.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, email, is_admin, is_premium, subscribed_to_blog, requested_premium, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (email) DO UPDATE SET
			is_admin           = users.is_admin OR EXCLUDED.is_admin,
			is_premium         = users.is_premium OR EXCLUDED.is_premium,
			subscribed_to_blog = users.subscribed_to_blog OR EXCLUDED.subscribed_to_blog,
			requested_premium  = users.requested_premium OR EXCLUDED.requested_premium,
			updated_at         = EXCLUDED.updated_at
		RETURNING id, email, is_admin, is_premium, subscribed_to_blog, requested_premium, joined_at, updated_at
	`

	var out models.User
	err := r.db.Pool().QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.IsAdmin,
		user.IsPremium,
		user.SubscribedToBlog,
		user.RequestedPremium,
		now,
	).Scan(
		&out.ID,
		&out.Email,
		&out.IsAdmin,
		&out.IsPremium,
		&out.SubscribedToBlog,
		&out.RequestedPremium,
		&out.JoinedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &out, nil
}

// SetAdmin flags an existing user record as admin. Best-effort companion to an
// allow-list addition; callers swallow ErrUserNotFound.
func (r *UserRepository) SetAdmin(ctx context.Context, email string) error {
	query := `UPDATE users SET is_admin = TRUE, updated_at = $2 WHERE email = $1`

	result, err := r.db.Pool().Exec(ctx, query, email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to flag user as admin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
