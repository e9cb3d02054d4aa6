package service

import (
	"context"
	"time"

	"github.com/scam-scanner/internal/config"
	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/types"
)

// RateLimitStore is the slice of the rate-limit repository the ledger needs.
type RateLimitStore interface {
	Get(ctx context.Context, key string, category types.EndpointCategory, day string) (*models.RateLimitRecord, error)
	Increment(ctx context.Context, key string, category types.EndpointCategory, day string) error
}

// BonusStore is the slice of the bonus repository the ledger needs.
type BonusStore interface {
	Get(ctx context.Context, email, day string) (*models.BonusPrompt, error)
	Create(ctx context.Context, rec *models.BonusPrompt) (*models.BonusPrompt, error)
	ConsumeOne(ctx context.Context, id string) error
}

// QuotaService is the daily quota ledger plus the bonus ledger layered under
// it. Admission checks fail open on store errors; only the commit paths write.
type QuotaService struct {
	rates    RateLimitStore
	bonuses  BonusStore
	resolver *EntitlementResolver
	cfg      *config.QuotaConfig
	now      func() time.Time
}

// NewQuotaService creates a new quota service
func NewQuotaService(rates RateLimitStore, bonuses BonusStore, resolver *EntitlementResolver, cfg *config.QuotaConfig) *QuotaService {
	return &QuotaService{
		rates:    rates,
		bonuses:  bonuses,
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
	}
}

// DayKey formats a moment as the UTC calendar day used in counter keys.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func endOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func (s *QuotaService) limitFor(ent Entitlement) int {
	if ent.IsPremium {
		return s.cfg.PremiumDaily
	}
	return s.cfg.FreeDaily
}

func (s *QuotaService) counterKey(ip, email string) string {
	if normalized := NormalizeEmail(email); normalized != "" {
		return normalized
	}
	return ip
}

// Check decides whether a request is admitted against today's counter. Admins
// bypass the ledger entirely. When the primary allowance is exhausted and the
// caller supplied an email, an unexpired bonus unit grants admission instead.
// A store failure admits the request: availability over strict enforcement.
func (s *QuotaService) Check(ctx context.Context, ip string, category types.EndpointCategory, email string) *types.QuotaDecision {
	ent := s.resolver.Resolve(ctx, email)

	if ent.IsAdmin {
		return &types.QuotaDecision{
			Allowed:   true,
			IsAdmin:   true,
			IsPremium: ent.IsPremium,
			Limit:     s.limitFor(ent),
		}
	}

	decision := &types.QuotaDecision{
		IsPremium: ent.IsPremium,
		Limit:     s.limitFor(ent),
	}

	day := DayKey(s.now())
	rec, err := s.rates.Get(ctx, s.counterKey(ip, email), category, day)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("category", string(category)).
			Error("quota store unavailable, admitting request")
		decision.Allowed = true
		return decision
	}
	if rec != nil {
		decision.Current = rec.RequestCount
	}

	decision.Allowed = decision.Current < decision.Limit

	normalized := NormalizeEmail(email)
	if normalized == "" {
		return decision
	}

	// Report bonus state whenever the caller gave an email, so the quota
	// headers stay truthful on admitted requests too. When the primary
	// allowance is exhausted, an available unit grants admission instead.
	bonus, err := s.bonuses.Get(ctx, normalized, day)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("email", normalized).
			Error("bonus store unavailable during quota check")
		return decision
	}
	if bonus == nil {
		return decision
	}

	status := s.bonusStatus(bonus)
	decision.HasBonus = status.HasBonus
	decision.BonusRemaining = status.Remaining
	decision.AlreadyUsedBonus = status.UsedToday

	if !decision.Allowed && status.HasBonus {
		decision.Allowed = true
		decision.UsedBonus = true
		decision.BonusRecordID = bonus.ID
	}

	return decision
}

// Commit records an admitted request: the bonus unit when one granted
// admission, the daily counter otherwise. Admins are never counted. Errors
// are logged, not returned; the user response is already decided.
func (s *QuotaService) Commit(ctx context.Context, ip string, category types.EndpointCategory, email string, decision *types.QuotaDecision) {
	if decision.IsAdmin {
		return
	}

	if decision.UsedBonus {
		if err := s.bonuses.ConsumeOne(ctx, decision.BonusRecordID); err != nil {
			logging.FromContext(ctx).WithError(err).Error("failed to consume bonus unit")
		}
		return
	}

	day := DayKey(s.now())
	if err := s.rates.Increment(ctx, s.counterKey(ip, email), category, day); err != nil {
		logging.FromContext(ctx).WithError(err).Error("failed to commit quota counter")
	}
}

// ActivateBonus allocates today's bonus allotment for an email. Idempotent
// per day: a repeat activation reports the existing allocation.
func (s *QuotaService) ActivateBonus(ctx context.Context, email, ip string) (*types.BonusStatus, bool, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, false, &types.ServiceError{Code: "INVALID_EMAIL", Message: "email is required"}
	}

	now := s.now()
	day := DayKey(now)

	existing, err := s.bonuses.Get(ctx, normalized, day)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return s.bonusStatus(existing), true, nil
	}

	created, err := s.bonuses.Create(ctx, &models.BonusPrompt{
		Email:     normalized,
		Day:       day,
		ExpiresAt: endOfUTCDay(now),
		IPAddress: ip,
	})
	if err != nil {
		return nil, false, err
	}

	// Create resolves concurrent duplicates to the winning row; a non-zero
	// used count means someone else activated first.
	alreadyActivated := created.UsedCount > 0
	return s.bonusStatus(created), alreadyActivated, nil
}

// BonusStatus reports the state of today's allotment for an email.
func (s *QuotaService) BonusStatus(ctx context.Context, email string) (*types.BonusStatus, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return &types.BonusStatus{}, nil
	}

	rec, err := s.bonuses.Get(ctx, normalized, DayKey(s.now()))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &types.BonusStatus{}, nil
	}
	return s.bonusStatus(rec), nil
}

// bonusStatus derives the reported state from a record. Expiry is checked
// independently of the count: a record whose day has passed reads as
// exhausted even if units were numerically left.
func (s *QuotaService) bonusStatus(rec *models.BonusPrompt) *types.BonusStatus {
	remaining := s.cfg.BonusPerDay - rec.UsedCount
	if remaining < 0 {
		remaining = 0
	}

	if s.now().After(rec.ExpiresAt) {
		return &types.BonusStatus{HasBonus: false, Remaining: 0, UsedToday: true}
	}

	return &types.BonusStatus{
		HasBonus:  remaining > 0,
		Remaining: remaining,
		UsedToday: remaining == 0,
	}
}
