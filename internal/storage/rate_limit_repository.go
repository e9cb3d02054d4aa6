package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/types"
)

// RateLimitRepository persists the per-(key, endpoint, day) request counters.
// "Reset" is a new (key, day) tuple at the UTC day boundary, never a zeroed
// counter.
type RateLimitRepository struct {
	db *PostgresDB
}

// NewRateLimitRepository creates a new rate limit repository
func NewRateLimitRepository(db *PostgresDB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// DayKey formats a moment as the UTC calendar day used in counter keys
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Get returns the counter row for (key, category, day), or nil when absent.
func (r *RateLimitRepository) Get(ctx context.Context, key string, category types.EndpointCategory, day string) (*models.RateLimitRecord, error) {
	query := `
		SELECT id, limit_key, category, day, request_count, last_request_at
		FROM rate_limits
		WHERE limit_key = $1 AND category = $2 AND day = $3
	`

	var rec models.RateLimitRecord
	err := r.db.Pool().QueryRow(ctx, query, key, string(category), day).Scan(
		&rec.ID,
		&rec.Key,
		&rec.Category,
		&rec.Day,
		&rec.RequestCount,
		&rec.LastRequestAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate limit record: %w", err)
	}

	return &rec, nil
}

// Increment bumps the counter for (key, category, day), creating the row with
// count=1 when absent. Counters are monotonically non-decreasing within a day.
func (r *RateLimitRepository) Increment(ctx context.Context, key string, category types.EndpointCategory, day string) error {
	query := `
		INSERT INTO rate_limits (id, limit_key, category, day, request_count, last_request_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (limit_key, category, day) DO UPDATE SET
			request_count   = rate_limits.request_count + 1,
			last_request_at = EXCLUDED.last_request_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		uuid.New().String(),
		key,
		string(category),
		day,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return nil
}
