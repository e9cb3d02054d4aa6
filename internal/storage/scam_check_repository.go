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

// ScamCheckRepository persists cached basic-tier, text-only scan results keyed
// on a hash of the normalized scenario text.
type ScamCheckRepository struct {
	db *PostgresDB
}

// NewScamCheckRepository creates a new scam check repository
func NewScamCheckRepository(db *PostgresDB) *ScamCheckRepository {
	return &ScamCheckRepository{db: db}
}

// GetByHash retrieves a cached result, or nil on miss.
func (r *ScamCheckRepository) GetByHash(ctx context.Context, scenarioHash string) (*models.ScamCheck, error) {
	query := `
		SELECT id, scenario_hash, scenario, risk_level, summary, red_flags, safety_tips, created_at
		FROM scam_checks
		WHERE scenario_hash = $1
	`

	var rec models.ScamCheck
	err := r.db.Pool().QueryRow(ctx, query, scenarioHash).Scan(
		&rec.ID,
		&rec.ScenarioHash,
		&rec.Scenario,
		&rec.RiskLevel,
		&rec.Summary,
		&rec.RedFlags,
		&rec.SafetyTips,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached scam check: %w", err)
	}

	return &rec, nil
}

// Save stores a text-only basic scan result
func (r *ScamCheckRepository) Save(ctx context.Context, rec *models.ScamCheck) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO scam_checks (id, scenario_hash, scenario, risk_level, summary, red_flags, safety_tips, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (scenario_hash) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		rec.ID,
		rec.ScenarioHash,
		rec.Scenario,
		string(rec.RiskLevel),
		rec.Summary,
		rec.RedFlags,
		rec.SafetyTips,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cached scam check: %w", err)
	}

	return nil
}
