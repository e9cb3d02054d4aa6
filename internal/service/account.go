package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/storage"
	"github.com/scam-scanner/internal/types"
)

// ExpertStore persists expert follow-up requests and their status workflow.
type ExpertStore interface {
	Create(ctx context.Context, req *models.ExpertRequest) (*models.ExpertRequest, error)
	GetByID(ctx context.Context, id string) (*models.ExpertRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.ExpertRequestStatus, assignedTo *string) error
}

// UsageStatsStore aggregates prior activity per email from the audit trail.
type UsageStatsStore interface {
	UsageStats(ctx context.Context, email string) (*models.UsageStats, error)
}

// AccountService covers the account-shaped operations around the assessment
// core: expert follow-up intake, premium interest capture, and diagnostics.
type AccountService struct {
	resolver *EntitlementResolver
	quota    *QuotaService
	experts  ExpertStore
	audit    AuditStore
	stats    UsageStatsStore
}

// NewAccountService creates a new account service
func NewAccountService(resolver *EntitlementResolver, quota *QuotaService, experts ExpertStore, audit AuditStore, stats UsageStatsStore) *AccountService {
	return &AccountService{
		resolver: resolver,
		quota:    quota,
		experts:  experts,
		audit:    audit,
		stats:    stats,
	}
}

// ExpertInput is a validated expert follow-up request.
type ExpertInput struct {
	Scenario           string
	SuspiciousAddress  string
	UserAddress        string
	ExtractedAddresses []string
	Notes              string
	Email              string
	IP                 string
}

// RequestExpert files a pending expert request and records the premium
// interest behind it.
func (s *AccountService) RequestExpert(ctx context.Context, in *ExpertInput, decision *types.QuotaDecision) (*models.ExpertRequest, error) {
	if strings.TrimSpace(in.Scenario) == "" {
		return nil, &types.ServiceError{Code: "VALIDATION_ERROR", Message: "scenario is required"}
	}

	req := &models.ExpertRequest{
		Scenario:          in.Scenario,
		Addresses:         buildExpertAddresses(in),
		Notes:             in.Notes,
		AdminOverrideUsed: decision.IsAdmin,
	}
	if normalized := NormalizeEmail(in.Email); normalized != "" {
		req.RequesterEmail = &normalized
	}

	created, err := s.experts.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.recordPremiumInterest(ctx, in.Email, "expert_investigation", decision.IsAdmin, map[string]interface{}{
		"requestId": created.ID,
	})
	s.quota.Commit(ctx, in.IP, types.CategoryExpert, in.Email, decision)

	return created, nil
}

func buildExpertAddresses(in *ExpertInput) []models.ExpertAddress {
	targets := []AddressTarget{}
	if in.SuspiciousAddress != "" {
		targets = append(targets, AddressTarget{Address: in.SuspiciousAddress, Role: types.RoleSuspicious})
	}
	if in.UserAddress != "" {
		targets = append(targets, AddressTarget{Address: in.UserAddress, Role: types.RoleUser})
	}
	for _, addr := range in.ExtractedAddresses {
		targets = append(targets, AddressTarget{Address: addr, Role: types.RoleExtracted})
	}
	for _, addr := range ExtractAddresses(in.Scenario) {
		targets = append(targets, AddressTarget{Address: addr, Role: types.RoleExtracted})
	}

	seen := make(map[string]struct{}, len(targets))
	out := make([]models.ExpertAddress, 0, len(targets))
	for _, t := range targets {
		key := strings.ToLower(strings.TrimSpace(t.Address))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.ExpertAddress{Address: t.Address, Role: t.Role})
	}
	return out
}

// UpdateExpertStatus moves an expert request through its workflow. Admin-only:
// the requester must be a current admin, verified without the fail-open
// shortcut, since this mutates another user's record.
func (s *AccountService) UpdateExpertStatus(ctx context.Context, requesterEmail, id string, status models.ExpertRequestStatus, assignedTo *string) (*models.ExpertRequest, error) {
	if !s.resolver.isAdminStrict(ctx, requesterEmail) {
		return nil, &types.ServiceError{Code: "FORBIDDEN", Message: "must be an admin to manage expert requests"}
	}
	if !status.Valid() {
		return nil, &types.ServiceError{Code: "VALIDATION_ERROR", Message: "unknown expert request status"}
	}

	if err := s.experts.UpdateStatus(ctx, id, status, assignedTo); err != nil {
		if errors.Is(err, storage.ErrExpertRequestNotFound) {
			return nil, &types.ServiceError{Code: "NOT_FOUND", Message: "expert request not found"}
		}
		return nil, err
	}

	return s.experts.GetByID(ctx, id)
}

// Subscribe flags premium interest for an email. There is no billing step:
// supplying an email is what grants the premium flag today.
func (s *AccountService) Subscribe(ctx context.Context, email, source string, subscribeToNewsletter bool) (bool, error) {
	premium := IsPremiumClaim(email)
	t := true
	updates := &models.UserUpdates{
		IsPremium:        &premium,
		RequestedPremium: &t,
	}
	if subscribeToNewsletter {
		updates.SubscribedToBlog = &t
	}

	user, err := s.resolver.CreateOrUpdate(ctx, email, updates)
	if err != nil {
		return false, err
	}

	s.recordPremiumInterest(ctx, email, "premium_subscription", user.IsAdmin, map[string]interface{}{
		"source":     source,
		"newsletter": subscribeToNewsletter,
	})

	return user.IsAdmin, nil
}

// AdminCheck is the diagnostic view of a user record.
type AdminCheck struct {
	Exists           bool `json:"exists"`
	IsAdmin          bool `json:"isAdmin"`
	IsPremium        bool `json:"isPremium"`
	SubscribedToBlog bool `json:"subscribedToBlog"`
	RequestedPremium bool `json:"requestedPremium"`
}

// CheckAdmin reports whether a user record exists and its flags.
func (s *AccountService) CheckAdmin(ctx context.Context, email string) (*AdminCheck, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, &types.ServiceError{Code: "INVALID_EMAIL", Message: "email is required"}
	}

	user, err := s.resolver.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return &AdminCheck{Exists: false, IsAdmin: s.resolver.admins.Contains(normalized)}, nil
		}
		return nil, err
	}

	return &AdminCheck{
		Exists:           true,
		IsAdmin:          user.IsAdmin || s.resolver.admins.Contains(normalized),
		IsPremium:        user.IsPremium,
		SubscribedToBlog: user.SubscribedToBlog,
		RequestedPremium: user.RequestedPremium,
	}, nil
}

// UsageStats aggregates prior scan and premium-interest counts for one email.
func (s *AccountService) UsageStats(ctx context.Context, email string) (*models.UsageStats, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, &types.ServiceError{Code: "INVALID_EMAIL", Message: "email is required"}
	}
	return s.stats.UsageStats(ctx, normalized)
}

func (s *AccountService) recordPremiumInterest(ctx context.Context, email, feature string, isAdmin bool, details map[string]interface{}) {
	blob := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			blob = string(b)
		}
	}
	err := s.audit.InsertPremiumRequest(ctx, &models.PremiumRequest{
		Email:   NormalizeEmail(email),
		Feature: feature,
		IsAdmin: isAdmin,
		Details: blob,
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).Error("failed to append premium interest record")
	}
}
