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

// BonusRepository persists the per-(email, day) bonus allocations. The unique
// constraint on (email, day) makes same-day re-activation a read instead of a
// duplicate insert.
type BonusRepository struct {
	db *PostgresDB
}

// NewBonusRepository creates a new bonus repository
func NewBonusRepository(db *PostgresDB) *BonusRepository {
	return &BonusRepository{db: db}
}

// Get returns today's bonus row for the email, or nil when none exists.
func (r *BonusRepository) Get(ctx context.Context, email, day string) (*models.BonusPrompt, error) {
	query := `
		SELECT id, email, day, used_count, expires_at, ip_address, created_at
		FROM bonus_prompts
		WHERE email = $1 AND day = $2
	`

	var rec models.BonusPrompt
	err := r.db.Pool().QueryRow(ctx, query, email, day).Scan(
		&rec.ID,
		&rec.Email,
		&rec.Day,
		&rec.UsedCount,
		&rec.ExpiresAt,
		&rec.IPAddress,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bonus record: %w", err)
	}

	return &rec, nil
}

// Create inserts a fresh allocation with used_count=0. A concurrent duplicate
// activation loses the race and reads the existing row instead.
func (r *BonusRepository) Create(ctx context.Context, rec *models.BonusPrompt) (*models.BonusPrompt, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO bonus_prompts (id, email, day, used_count, expires_at, ip_address, created_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6)
		ON CONFLICT (email, day) DO NOTHING
	`

	result, err := r.db.Pool().Exec(ctx, query,
		rec.ID,
		rec.Email,
		rec.Day,
		rec.ExpiresAt,
		rec.IPAddress,
		rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bonus record: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Lost the race; return the row that won.
		existing, err := r.Get(ctx, rec.Email, rec.Day)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("bonus record vanished after conflicting insert")
		}
		return existing, nil
	}

	rec.UsedCount = 0
	return rec, nil
}

// ConsumeOne increments the used count for a bonus record
func (r *BonusRepository) ConsumeOne(ctx context.Context, id string) error {
	query := `UPDATE bonus_prompts SET used_count = used_count + 1 WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to consume bonus unit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bonus record not found: %s", id)
	}

	return nil
}
