package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scam-scanner/internal/models"
)

// AuditRepository appends scan logs and premium-interest records to ClickHouse.
// These tables are write-once analytics data; the live request path only ever
// inserts, and the single read surface is the usage-stats aggregation.
type AuditRepository struct {
	db *ClickHouseDB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *ClickHouseDB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertScanLog appends one scan log row
func (r *AuditRepository) InsertScanLog(ctx context.Context, rec *models.ScanLog) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	email := ""
	if rec.UserEmail != nil {
		email = *rec.UserEmail
	}

	query := `
		INSERT INTO scan_logs
			(id, scan_tier, input_shape, scenario, suspicious_address, user_address,
			 extracted_addresses, user_email, admin_override_used, risk_level, summary,
			 on_chain_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		rec.ID,
		string(rec.ScanTier),
		rec.InputShape,
		rec.Scenario,
		rec.SuspiciousAddress,
		rec.UserAddress,
		rec.ExtractedAddresses,
		email,
		rec.AdminOverrideUsed,
		string(rec.RiskLevel),
		rec.Summary,
		rec.OnChainData,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan log: %w", err)
	}

	return nil
}

// InsertPremiumRequest appends one premium-interest row
func (r *AuditRepository) InsertPremiumRequest(ctx context.Context, rec *models.PremiumRequest) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO premium_requests (id, email, feature, is_admin, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		rec.ID,
		rec.Email,
		rec.Feature,
		rec.IsAdmin,
		rec.Details,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert premium request: %w", err)
	}

	return nil
}

// UsageStats aggregates prior scan and premium-interest counts for one email
func (r *AuditRepository) UsageStats(ctx context.Context, email string) (*models.UsageStats, error) {
	stats := &models.UsageStats{Email: email}

	scanQuery := `SELECT count() FROM scan_logs WHERE user_email = ?`
	if err := r.db.Conn().QueryRow(ctx, scanQuery, email).Scan(&stats.ScanCount); err != nil {
		return nil, fmt.Errorf("failed to count scan logs: %w", err)
	}

	premiumQuery := `SELECT count() FROM premium_requests WHERE email = ?`
	if err := r.db.Conn().QueryRow(ctx, premiumQuery, email).Scan(&stats.PremiumRequests); err != nil {
		return nil, fmt.Errorf("failed to count premium requests: %w", err)
	}

	return stats, nil
}
