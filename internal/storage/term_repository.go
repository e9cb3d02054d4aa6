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

// TermRepository persists the beginner-depth explanation cache. Only beginner
// results are stored; other depths bypass this table entirely.
type TermRepository struct {
	db *PostgresDB
}

// NewTermRepository creates a new term repository
func NewTermRepository(db *PostgresDB) *TermRepository {
	return &TermRepository{db: db}
}

// GetByTerm retrieves a cached explanation by normalized term, or nil on miss.
func (r *TermRepository) GetByTerm(ctx context.Context, term string) (*models.CryptoTerm, error) {
	query := `
		SELECT id, term, explanation, related_terms, created_at
		FROM crypto_terms
		WHERE term = $1
	`

	var rec models.CryptoTerm
	err := r.db.Pool().QueryRow(ctx, query, term).Scan(
		&rec.ID,
		&rec.Term,
		&rec.Explanation,
		&rec.RelatedTerms,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached term: %w", err)
	}

	return &rec, nil
}

// Save stores a beginner-depth explanation. An existing entry for the term is
// left untouched: the first cached beginner explanation wins.
func (r *TermRepository) Save(ctx context.Context, rec *models.CryptoTerm) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO crypto_terms (id, term, explanation, related_terms, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (term) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		rec.ID,
		rec.Term,
		rec.Explanation,
		rec.RelatedTerms,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cached term: %w", err)
	}

	return nil
}
