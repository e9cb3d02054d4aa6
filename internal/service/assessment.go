package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/scam-scanner/internal/adapter"
	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/storage"
	"github.com/scam-scanner/internal/types"
)

// TermCacheStore is the durable side of the translate cache.
type TermCacheStore interface {
	GetByTerm(ctx context.Context, term string) (*models.CryptoTerm, error)
	Save(ctx context.Context, rec *models.CryptoTerm) error
}

// ScanCacheStore is the durable side of the scan cache.
type ScanCacheStore interface {
	GetByHash(ctx context.Context, scenarioHash string) (*models.ScamCheck, error)
	Save(ctx context.Context, rec *models.ScamCheck) error
}

// AuditStore appends terminal request outcomes for analytics.
type AuditStore interface {
	InsertScanLog(ctx context.Context, rec *models.ScanLog) error
	InsertPremiumRequest(ctx context.Context, rec *models.PremiumRequest) error
}

// AssessmentService is the request-handling core for translate and scan: it
// applies tier gating, consults the caches, fans out on-chain analyses, calls
// the model, merges everything, and triggers the audit trail.
type AssessmentService struct {
	quota    *QuotaService
	analyzer *Analyzer
	llm      adapter.LLMClient
	terms    TermCacheStore
	scans    ScanCacheStore
	cache    *storage.CacheService
	audit    AuditStore
	now      func() time.Time
}

// NewAssessmentService creates a new assessment service. cache may be nil
// when Redis is not deployed; the durable caches still apply.
func NewAssessmentService(
	quota *QuotaService,
	analyzer *Analyzer,
	llm adapter.LLMClient,
	terms TermCacheStore,
	scans ScanCacheStore,
	cache *storage.CacheService,
	audit AuditStore,
) *AssessmentService {
	return &AssessmentService{
		quota:    quota,
		analyzer: analyzer,
		llm:      llm,
		terms:    terms,
		scans:    scans,
		cache:    cache,
		audit:    audit,
		now:      time.Now,
	}
}

// TranslateInput is a validated translate request.
type TranslateInput struct {
	Term     string
	Audience types.AudienceType
	Email    string
	IP       string
}

// TranslateResult is the translate response payload.
type TranslateResult struct {
	Term         string   `json:"term"`
	Explanation  string   `json:"explanation"`
	RelatedTerms []string `json:"relatedTerms"`
	IsAdmin      bool     `json:"isAdmin,omitempty"`
	Cached       bool     `json:"-"`
}

// Translate explains a crypto term. Only beginner-depth answers are cached:
// reuse requires the requested depth to match the cached depth, and a
// non-beginner answer never overwrites the beginner entry.
func (s *AssessmentService) Translate(ctx context.Context, in *TranslateInput, decision *types.QuotaDecision) (*TranslateResult, error) {
	term := strings.TrimSpace(in.Term)
	if term == "" {
		return nil, &types.ServiceError{Code: "VALIDATION_ERROR", Message: "term is required"}
	}
	audience := in.Audience
	if audience == "" {
		audience = types.AudienceBeginner
	}
	if !audience.Valid() {
		return nil, &types.ServiceError{Code: "VALIDATION_ERROR", Message: "unknown audience type"}
	}

	normalized := strings.ToLower(term)

	if audience == types.AudienceBeginner {
		if cached := s.cachedTerm(ctx, normalized); cached != nil {
			s.quota.Commit(ctx, in.IP, types.CategoryTranslate, in.Email, decision)
			return &TranslateResult{
				Term:         term,
				Explanation:  cached.Explanation,
				RelatedTerms: cached.RelatedTerms,
				IsAdmin:      decision.IsAdmin,
				Cached:       true,
			}, nil
		}
	}

	explanation, err := s.llm.ExplainTerm(ctx, term, audience)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("term", normalized).Error("model call failed for translate")
		return nil, &types.ServiceError{Code: "MODEL_FAILED", Message: "could not complete the explanation, please try again"}
	}

	if audience == types.AudienceBeginner {
		s.storeTerm(ctx, &models.CryptoTerm{
			Term:         normalized,
			Explanation:  explanation.Explanation,
			RelatedTerms: explanation.RelatedTerms,
		})
	}

	s.quota.Commit(ctx, in.IP, types.CategoryTranslate, in.Email, decision)

	return &TranslateResult{
		Term:         term,
		Explanation:  explanation.Explanation,
		RelatedTerms: explanation.RelatedTerms,
		IsAdmin:      decision.IsAdmin,
	}, nil
}

// ScanInput is a validated scan request.
type ScanInput struct {
	Scenario           string
	SuspiciousAddress  string
	UserAddress        string
	ExtractedAddresses []string
	ScanType           types.ScanType
	Email              string
	IP                 string
}

func (in *ScanInput) hasAddresses() bool {
	return in.SuspiciousAddress != "" || in.UserAddress != "" || len(in.ExtractedAddresses) > 0
}

func (in *ScanInput) inputShape() string {
	hasText := strings.TrimSpace(in.Scenario) != ""
	switch {
	case hasText && in.hasAddresses():
		return "both"
	case in.hasAddresses():
		return "address-only"
	default:
		return "text-only"
	}
}

// ScanResult is the scan response payload. The model narrative and the raw
// on-chain report stay separate; the caller decides presentation.
type ScanResult struct {
	RiskLevel       types.RiskLevel    `json:"riskLevel"`
	Summary         string             `json:"summary"`
	RedFlags        []string           `json:"redFlags"`
	SafetyTips      []string           `json:"safetyTips"`
	AddressAnalysis []*AddressAnalysis `json:"addressAnalysis,omitempty"`
	OnChainReport   string             `json:"onChainData,omitempty"`
	IsAdmin         bool               `json:"isAdmin,omitempty"`
	Cached          bool               `json:"-"`
}

// placeholderScenario stands in for free text when only addresses were given.
const placeholderScenario = "The user submitted the following blockchain address(es) for a scam risk check, without further context."

// Scan runs a scam assessment. Advanced tier requires premium or admin
// entitlement; a free caller asking for it lands in the premium-upsell
// rejection before any lookup or model call.
func (s *AssessmentService) Scan(ctx context.Context, in *ScanInput, decision *types.QuotaDecision) (*ScanResult, error) {
	if strings.TrimSpace(in.Scenario) == "" && !in.hasAddresses() {
		return nil, &types.ServiceError{
			Code:    "VALIDATION_ERROR",
			Message: "provide a scenario description or at least one address",
		}
	}

	tier := in.ScanType
	if tier == "" {
		tier = types.ScanBasic
	}

	if tier == types.ScanAdvanced && !decision.IsPremium && !decision.IsAdmin {
		s.recordPremiumInterest(ctx, in.Email, "wallet-analysis", decision.IsAdmin, map[string]interface{}{
			"scanType": string(types.ScanAdvanced),
		})
		return nil, &types.ServiceError{
			Code:    "PREMIUM_REQUIRED",
			Message: "advanced wallet analysis is a premium feature",
			Details: map[string]interface{}{"premiumFeature": "wallet-analysis"},
		}
	}

	// Cache applies only to text-only basic scans: address-bearing results
	// depend on live chain data and are not safe to memoize on text alone.
	// Addresses embedded in the scenario text count as address-bearing too.
	embedded := ExtractAddresses(in.Scenario)
	cacheable := tier == types.ScanBasic && !in.hasAddresses() && len(embedded) == 0
	scenarioHash := ""
	if cacheable {
		scenarioHash = storage.ScenarioHash(in.Scenario)
		if cached := s.cachedScan(ctx, scenarioHash); cached != nil {
			result := &ScanResult{
				RiskLevel:  cached.RiskLevel,
				Summary:    cached.Summary,
				RedFlags:   cached.RedFlags,
				SafetyTips: cached.SafetyTips,
				IsAdmin:    decision.IsAdmin,
				Cached:     true,
			}
			s.quota.Commit(ctx, in.IP, types.CategoryScan, in.Email, decision)
			s.logScan(ctx, in, decision, tier, result, nil)
			return result, nil
		}
	}

	targets := s.buildTargets(in, embedded)
	analyses := s.analyzer.AnalyzeAll(ctx, targets, tier)

	scenario := strings.TrimSpace(in.Scenario)
	if scenario == "" {
		scenario = placeholderScenario
	}

	assessment, err := s.llm.AssessScenario(ctx, &adapter.RiskPrompt{
		Scenario:       scenario,
		OnChainContext: joinPromptSummaries(analyses),
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).Error("model call failed for scan")
		return nil, &types.ServiceError{Code: "MODEL_FAILED", Message: "could not complete the analysis, please try again"}
	}

	result := &ScanResult{
		RiskLevel:       assessment.RiskLevel,
		Summary:         assessment.Summary,
		RedFlags:        assessment.RedFlags,
		SafetyTips:      assessment.SafetyTips,
		AddressAnalysis: analyses,
		OnChainReport:   renderReport(analyses),
		IsAdmin:         decision.IsAdmin,
	}

	if cacheable {
		s.storeScan(ctx, &models.ScamCheck{
			ScenarioHash: scenarioHash,
			Scenario:     in.Scenario,
			RiskLevel:    assessment.RiskLevel,
			Summary:      assessment.Summary,
			RedFlags:     assessment.RedFlags,
			SafetyTips:   assessment.SafetyTips,
		})
	}

	s.quota.Commit(ctx, in.IP, types.CategoryScan, in.Email, decision)
	s.logScan(ctx, in, decision, tier, result, analyses)

	return result, nil
}

// buildTargets assembles the analysis list in fixed precedence order:
// explicit suspicious address, explicit user address, then extracted
// addresses in extraction order.
func (s *AssessmentService) buildTargets(in *ScanInput, embedded []string) []AddressTarget {
	var targets []AddressTarget
	if in.SuspiciousAddress != "" {
		targets = append(targets, AddressTarget{Address: in.SuspiciousAddress, Role: types.RoleSuspicious})
	}
	if in.UserAddress != "" {
		targets = append(targets, AddressTarget{Address: in.UserAddress, Role: types.RoleUser})
	}
	for _, addr := range in.ExtractedAddresses {
		targets = append(targets, AddressTarget{Address: addr, Role: types.RoleExtracted})
	}
	for _, addr := range embedded {
		targets = append(targets, AddressTarget{Address: addr, Role: types.RoleExtracted})
	}
	return targets
}

func joinPromptSummaries(analyses []*AddressAnalysis) string {
	if len(analyses) == 0 {
		return ""
	}
	parts := make([]string, 0, len(analyses))
	for _, a := range analyses {
		parts = append(parts, a.PromptSummary)
	}
	return strings.Join(parts, "\n")
}

func renderReport(analyses []*AddressAnalysis) string {
	if len(analyses) == 0 {
		return ""
	}
	sections := make([]types.ReportSection, 0, len(analyses))
	for _, a := range analyses {
		sections = append(sections, a.Section)
	}
	return types.RenderSections(sections)
}

// logScan appends the audit record for an admitted, completed scan. Failures
// are swallowed: analytics must never fail the user-facing response.
func (s *AssessmentService) logScan(ctx context.Context, in *ScanInput, decision *types.QuotaDecision, tier types.ScanType, result *ScanResult, analyses []*AddressAnalysis) {
	rec := &models.ScanLog{
		ScanTier:          tier,
		InputShape:        in.inputShape(),
		Scenario:          in.Scenario,
		SuspiciousAddress: in.SuspiciousAddress,
		UserAddress:       in.UserAddress,
		AdminOverrideUsed: decision.IsAdmin,
		RiskLevel:         result.RiskLevel,
		Summary:           result.Summary,
		CreatedAt:         s.now().UTC(),
	}

	if normalized := NormalizeEmail(in.Email); normalized != "" {
		rec.UserEmail = &normalized
	}

	rec.ExtractedAddresses = append(rec.ExtractedAddresses, in.ExtractedAddresses...)
	rec.ExtractedAddresses = append(rec.ExtractedAddresses, ExtractAddresses(in.Scenario)...)

	if len(analyses) > 0 {
		facts := make([]*types.OnChainFacts, 0, len(analyses))
		for _, a := range analyses {
			facts = append(facts, a.Facts)
		}
		if blob, err := json.Marshal(facts); err == nil {
			rec.OnChainData = string(blob)
		}
	}

	if err := s.audit.InsertScanLog(ctx, rec); err != nil {
		logging.FromContext(ctx).WithError(err).Error("failed to append scan log")
	}
}

func (s *AssessmentService) recordPremiumInterest(ctx context.Context, email, feature string, isAdmin bool, details map[string]interface{}) {
	blob := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			blob = string(b)
		}
	}
	err := s.audit.InsertPremiumRequest(ctx, &models.PremiumRequest{
		Email:     NormalizeEmail(email),
		Feature:   feature,
		IsAdmin:   isAdmin,
		Details:   blob,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).Error("failed to append premium interest record")
	}
}

func (s *AssessmentService) cachedTerm(ctx context.Context, normalized string) *models.CryptoTerm {
	logger := logging.FromContext(ctx)

	if s.cache != nil {
		var rec models.CryptoTerm
		hit, err := s.cache.Get(ctx, s.cache.TermKey(normalized), &rec)
		if err != nil {
			logger.WithError(err).Warn("term cache read failed, falling through")
		} else if hit {
			return &rec
		}
	}

	rec, err := s.terms.GetByTerm(ctx, normalized)
	if err != nil {
		logger.WithError(err).Warn("term store read failed, treating as miss")
		return nil
	}
	if rec != nil && s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.TermKey(normalized), rec); err != nil {
			logger.WithError(err).Warn("term cache refill failed")
		}
	}
	return rec
}

func (s *AssessmentService) storeTerm(ctx context.Context, rec *models.CryptoTerm) {
	logger := logging.FromContext(ctx)
	if err := s.terms.Save(ctx, rec); err != nil {
		logger.WithError(err).Warn("failed to persist term explanation")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.TermKey(rec.Term), rec); err != nil {
			logger.WithError(err).Warn("failed to cache term explanation")
		}
	}
}

func (s *AssessmentService) cachedScan(ctx context.Context, scenarioHash string) *models.ScamCheck {
	logger := logging.FromContext(ctx)

	if s.cache != nil {
		var rec models.ScamCheck
		hit, err := s.cache.Get(ctx, s.cache.ScanKey(scenarioHash), &rec)
		if err != nil {
			logger.WithError(err).Warn("scan cache read failed, falling through")
		} else if hit {
			return &rec
		}
	}

	rec, err := s.scans.GetByHash(ctx, scenarioHash)
	if err != nil {
		logger.WithError(err).Warn("scan store read failed, treating as miss")
		return nil
	}
	if rec != nil && s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.ScanKey(scenarioHash), rec); err != nil {
			logger.WithError(err).Warn("scan cache refill failed")
		}
	}
	return rec
}

func (s *AssessmentService) storeScan(ctx context.Context, rec *models.ScamCheck) {
	logger := logging.FromContext(ctx)
	if err := s.scans.Save(ctx, rec); err != nil {
		logger.WithError(err).Warn("failed to persist scan result")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.ScanKey(rec.ScenarioHash), rec); err != nil {
			logger.WithError(err).Warn("failed to cache scan result")
		}
	}
}
