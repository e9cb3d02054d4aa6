package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scam-scanner/internal/models"
)

// ErrExpertRequestNotFound is returned when no row exists for the requested id
var ErrExpertRequestNotFound = errors.New("expert request not found")

// ExpertRequestRepository persists expert follow-up requests. Unlike the audit
// tables these rows are mutable: status moves from pending to admin-set values.
type ExpertRequestRepository struct {
	db *PostgresDB
}

// NewExpertRequestRepository creates a new expert request repository
func NewExpertRequestRepository(db *PostgresDB) *ExpertRequestRepository {
	return &ExpertRequestRepository{db: db}
}

// Create inserts a new pending expert request
func (r *ExpertRequestRepository) Create(ctx context.Context, req *models.ExpertRequest) (*models.ExpertRequest, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.ExpertStatusPending
	}

	addressesJSON, err := json.Marshal(req.Addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal addresses: %w", err)
	}

	query := `
		INSERT INTO expert_requests (id, scenario, addresses, notes, requester_email, admin_override_used, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		req.ID,
		req.Scenario,
		addressesJSON,
		req.Notes,
		req.RequesterEmail,
		req.AdminOverrideUsed,
		string(req.Status),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expert request: %w", err)
	}

	return req, nil
}

// GetByID retrieves an expert request
func (r *ExpertRequestRepository) GetByID(ctx context.Context, id string) (*models.ExpertRequest, error) {
	query := `
		SELECT id, scenario, addresses, notes, requester_email, admin_override_used, status, assigned_to, completed_at, created_at, updated_at
		FROM expert_requests
		WHERE id = $1
	`

	var req models.ExpertRequest
	var addressesJSON []byte
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.Scenario,
		&addressesJSON,
		&req.Notes,
		&req.RequesterEmail,
		&req.AdminOverrideUsed,
		&req.Status,
		&req.AssignedTo,
		&req.CompletedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExpertRequestNotFound
		}
		return nil, fmt.Errorf("failed to get expert request: %w", err)
	}

	if len(addressesJSON) > 0 {
		if err := json.Unmarshal(addressesJSON, &req.Addresses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal addresses: %w", err)
		}
	}

	return &req, nil
}

// UpdateStatus transitions an expert request to a new status
func (r *ExpertRequestRepository) UpdateStatus(ctx context.Context, id string, status models.ExpertRequestStatus, assignedTo *string) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if status == models.ExpertStatusCompleted {
		completedAt = &now
	}

	query := `
		UPDATE expert_requests
		SET status = $2, assigned_to = $3, completed_at = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, id, string(status), assignedTo, completedAt, now)
	if err != nil {
		return fmt.Errorf("failed to update expert request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrExpertRequestNotFound
	}

	return nil
}
