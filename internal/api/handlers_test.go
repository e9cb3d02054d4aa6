package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/scam-scanner/internal/config"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/service"
	"github.com/scam-scanner/internal/storage"
	"github.com/scam-scanner/internal/types"
)

const testScanAddr = "0x1111111111111111111111111111111111111111"

// In-memory stores backing the real quota service in tests.

type fakeUserStore struct {
	users map[string]*models.User
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.users[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserStore) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if existing, ok := f.users[user.Email]; ok {
		existing.IsAdmin = existing.IsAdmin || user.IsAdmin
		existing.IsPremium = existing.IsPremium || user.IsPremium
		copied := *existing
		return &copied, nil
	}
	copied := *user
	f.users[user.Email] = &copied
	out := copied
	return &out, nil
}

func (f *fakeUserStore) SetAdmin(ctx context.Context, email string) error {
	if u, ok := f.users[email]; ok {
		u.IsAdmin = true
		return nil
	}
	return storage.ErrUserNotFound
}

type fakeRateStore struct {
	counts map[string]int
}

func (f *fakeRateStore) key(key string, category types.EndpointCategory, day string) string {
	return fmt.Sprintf("%s|%s|%s", key, category, day)
}

func (f *fakeRateStore) Get(ctx context.Context, key string, category types.EndpointCategory, day string) (*models.RateLimitRecord, error) {
	count, ok := f.counts[f.key(key, category, day)]
	if !ok {
		return nil, nil
	}
	return &models.RateLimitRecord{Key: key, Category: category, Day: day, RequestCount: count}, nil
}

func (f *fakeRateStore) Increment(ctx context.Context, key string, category types.EndpointCategory, day string) error {
	f.counts[f.key(key, category, day)]++
	return nil
}

type fakeBonusStore struct {
	records map[string]*models.BonusPrompt
}

func (f *fakeBonusStore) Get(ctx context.Context, email, day string) (*models.BonusPrompt, error) {
	if rec, ok := f.records[email+"|"+day]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeBonusStore) Create(ctx context.Context, rec *models.BonusPrompt) (*models.BonusPrompt, error) {
	key := rec.Email + "|" + rec.Day
	if existing, ok := f.records[key]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *rec
	copied.ID = fmt.Sprintf("bonus-%d", len(f.records)+1)
	f.records[key] = &copied
	out := copied
	return &out, nil
}

func (f *fakeBonusStore) ConsumeOne(ctx context.Context, id string) error {
	for _, rec := range f.records {
		if rec.ID == id {
			rec.UsedCount++
			return nil
		}
	}
	return errors.New("bonus record not found")
}

// Mock assessment service for testing handler wiring.
type mockAssessmentService struct {
	translateFn func(ctx context.Context, in *service.TranslateInput, decision *types.QuotaDecision) (*service.TranslateResult, error)
	scanFn      func(ctx context.Context, in *service.ScanInput, decision *types.QuotaDecision) (*service.ScanResult, error)
}

func (m *mockAssessmentService) Translate(ctx context.Context, in *service.TranslateInput, decision *types.QuotaDecision) (*service.TranslateResult, error) {
	if m.translateFn != nil {
		return m.translateFn(ctx, in, decision)
	}
	return &service.TranslateResult{Term: in.Term, Explanation: "an explanation"}, nil
}

func (m *mockAssessmentService) Scan(ctx context.Context, in *service.ScanInput, decision *types.QuotaDecision) (*service.ScanResult, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, in, decision)
	}
	return &service.ScanResult{RiskLevel: types.RiskLow, Summary: "looks fine"}, nil
}

// Mock account service for testing handler wiring.
type mockAccountService struct {
	expertFn       func(ctx context.Context, in *service.ExpertInput, decision *types.QuotaDecision) (*models.ExpertRequest, error)
	expertStatusFn func(ctx context.Context, requesterEmail, id string, status models.ExpertRequestStatus, assignedTo *string) (*models.ExpertRequest, error)
	subscribeFn    func(ctx context.Context, email, source string, newsletter bool) (bool, error)
}

func (m *mockAccountService) UpdateExpertStatus(ctx context.Context, requesterEmail, id string, status models.ExpertRequestStatus, assignedTo *string) (*models.ExpertRequest, error) {
	if m.expertStatusFn != nil {
		return m.expertStatusFn(ctx, requesterEmail, id, status, assignedTo)
	}
	return &models.ExpertRequest{ID: id, Status: status, AssignedTo: assignedTo}, nil
}

func (m *mockAccountService) RequestExpert(ctx context.Context, in *service.ExpertInput, decision *types.QuotaDecision) (*models.ExpertRequest, error) {
	if m.expertFn != nil {
		return m.expertFn(ctx, in, decision)
	}
	return &models.ExpertRequest{ID: "expert-1", Status: models.ExpertStatusPending, CreatedAt: time.Now()}, nil
}

func (m *mockAccountService) Subscribe(ctx context.Context, email, source string, newsletter bool) (bool, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email, source, newsletter)
	}
	return false, nil
}

func (m *mockAccountService) CheckAdmin(ctx context.Context, email string) (*service.AdminCheck, error) {
	return &service.AdminCheck{Exists: true}, nil
}

func (m *mockAccountService) UsageStats(ctx context.Context, email string) (*models.UsageStats, error) {
	return &models.UsageStats{Email: email, ScanCount: 3}, nil
}

type testEnv struct {
	server      *Server
	assessments *mockAssessmentService
	accounts    *mockAccountService
	rates       *fakeRateStore
	bonuses     *fakeBonusStore
	users       *fakeUserStore
}

func createTestServer(admins ...string) *testEnv {
	users := &fakeUserStore{users: make(map[string]*models.User)}
	rates := &fakeRateStore{counts: make(map[string]int)}
	bonuses := &fakeBonusStore{records: make(map[string]*models.BonusPrompt)}

	resolver := service.NewEntitlementResolver(users, service.NewAdminList(admins))
	quota := service.NewQuotaService(rates, bonuses, resolver, &config.QuotaConfig{
		FreeDaily:    5,
		PremiumDaily: 100,
		BonusPerDay:  5,
	})

	assessments := &mockAssessmentService{}
	accounts := &mockAccountService{}

	server := NewServer(&ServerConfig{
		Host:         "127.0.0.1",
		Port:         "0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  5 * time.Second,
		FreeRPS:      100,
		PremiumRPS:   200,
	}, assessments, accounts, quota, resolver)

	return &testEnv{
		server:      server,
		assessments: assessments,
		accounts:    accounts,
		rates:       rates,
		bonuses:     bonuses,
		users:       users,
	}
}

func doJSON(t *testing.T, env *testEnv, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:51234"

	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", resp)
	}
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealthEndpoint_ReportsStores(t *testing.T) {
	env := createTestServer()
	env.server.RegisterStore("postgres", &fakePinger{})
	env.server.RegisterStore("redis", &fakePinger{err: errors.New("connection refused")})

	w := doJSON(t, env, "GET", "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 with an unreachable store, got %d", w.Code)
	}

	var resp struct {
		Status string            `json:"status"`
		Stores map[string]string `json:"stores"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Expected degraded status, got %q", resp.Status)
	}
	if resp.Stores["postgres"] != "ok" || resp.Stores["redis"] != "unreachable" {
		t.Errorf("Unexpected store report %v", resp.Stores)
	}
}

func TestTranslate_InvalidJSON(t *testing.T) {
	env := createTestServer()

	req := httptest.NewRequest("POST", "/api/translate", bytes.NewReader([]byte("not json")))
	req.RemoteAddr = "10.0.0.9:51234"
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestTranslate_MissingTerm(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/translate", map[string]interface{}{"audienceType": "beginner"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("Expected %s, got %s", ErrCodeInvalidInput, resp.Error.Code)
	}
}

func TestTranslate_SuccessSetsQuotaHeaders(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/translate", map[string]interface{}{"term": "rug pull"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := w.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("Expected X-RateLimit-Limit 5, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "5" {
		t.Errorf("Expected X-RateLimit-Remaining 5, got %q", got)
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("Expected X-RateLimit-Reset header")
	}
}

func TestQuotaGate_RejectsOverLimit(t *testing.T) {
	env := createTestServer()

	// Exhaust today's free allowance for the caller's IP.
	day := service.DayKey(time.Now())
	env.rates.counts[env.rates.key("10.0.0.9", types.CategoryScan, day)] = 5

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{"scenario": "is this a scam"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}

	var resp QuotaRejection
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Current != 5 || resp.Limit != 5 {
		t.Errorf("Expected current=5 limit=5, got %+v", resp)
	}
	if !resp.NeedsEmail {
		t.Error("Anonymous rejection should ask for an email")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected zero remaining, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestAccountEndpoints_ReportQuotaHeaders(t *testing.T) {
	env := createTestServer()

	// Over quota: account endpoints still admit, but the headers tell the
	// caller where their allowance stands.
	day := service.DayKey(time.Now())
	env.rates.counts[env.rates.key("alice@example.com", types.CategoryScan, day)] = 5

	w := doJSON(t, env, "POST", "/api/activate-bonus", map[string]interface{}{"email": "alice@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("Account endpoint must not enforce quota, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "5" {
		t.Errorf("Expected limit header, got %q", w.Header().Get("X-RateLimit-Limit"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected zero remaining, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}

	// GET endpoints report the same state from the query-string email.
	w = doJSON(t, env, "GET", "/api/usage-stats?email=alice@example.com", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected zero remaining on GET, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestQuotaGate_PromotesPremiumCallerRPS(t *testing.T) {
	env := createTestServer()
	env.users.users["paid@example.com"] = &models.User{Email: "paid@example.com", IsPremium: true}

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{
		"scenario": "is this a scam",
		"email":    "paid@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	limiter := env.server.rateLimiter.getLimiter("10.0.0.9", false)
	if limiter.Limit() != rate.Limit(200) {
		t.Errorf("Premium caller should be promoted to the premium RPS rate, got %v", limiter.Limit())
	}
}

func TestQuotaGate_PeeksEmailFromBody(t *testing.T) {
	env := createTestServer()

	// The email-keyed counter is exhausted but the IP counter is clean: the
	// gate must find the email inside the JSON body and reject.
	day := service.DayKey(time.Now())
	env.rates.counts[env.rates.key("alice@example.com", types.CategoryScan, day)] = 5

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{
		"scenario": "is this a scam",
		"email":    "Alice@Example.com",
	})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 keyed on peeked email, got %d", w.Code)
	}

	var resp QuotaRejection
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NeedsEmail {
		t.Error("Email-bearing rejection must not ask for an email")
	}
}

func TestQuotaGate_BodySurvivesPeek(t *testing.T) {
	env := createTestServer()

	var gotTerm string
	env.assessments.translateFn = func(ctx context.Context, in *service.TranslateInput, decision *types.QuotaDecision) (*service.TranslateResult, error) {
		gotTerm = in.Term
		return &service.TranslateResult{Term: in.Term, Explanation: "x"}, nil
	}

	w := doJSON(t, env, "POST", "/api/translate", map[string]interface{}{
		"term":  "staking",
		"email": "bob@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotTerm != "staking" {
		t.Errorf("Handler should see the full body after the gate peek, got term %q", gotTerm)
	}
}

func TestQuotaGate_AdminBypass(t *testing.T) {
	env := createTestServer("admin@example.com")

	day := service.DayKey(time.Now())
	env.rates.counts[env.rates.key("admin@example.com", types.CategoryScan, day)] = 500

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{
		"scenario": "is this a scam",
		"email":    "admin@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected admin bypass 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-RateLimit-Admin") != "true" {
		t.Error("Expected X-RateLimit-Admin true")
	}
}

func TestScan_RequiresScenarioOrAddress(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{"scanType": "basic"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestScan_InvalidScanType(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{
		"scenario": "hm",
		"scanType": "forensic",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestScan_PremiumRequiredMapsTo403(t *testing.T) {
	env := createTestServer()
	env.assessments.scanFn = func(ctx context.Context, in *service.ScanInput, decision *types.QuotaDecision) (*service.ScanResult, error) {
		return nil, &types.ServiceError{
			Code:    "PREMIUM_REQUIRED",
			Message: "advanced wallet analysis is a premium feature",
			Details: map[string]interface{}{"premiumFeature": "wallet-analysis"},
		}
	}

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{
		"suspiciousAddress": testScanAddr,
		"scanType":          "advanced",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != ErrCodePremiumRequired {
		t.Errorf("Expected %s, got %s", ErrCodePremiumRequired, resp.Error.Code)
	}
	if resp.Error.Details["premiumFeature"] != "wallet-analysis" {
		t.Errorf("Expected premiumFeature detail, got %v", resp.Error.Details)
	}
}

func TestScan_ModelFailureMapsTo502(t *testing.T) {
	env := createTestServer()
	env.assessments.scanFn = func(ctx context.Context, in *service.ScanInput, decision *types.QuotaDecision) (*service.ScanResult, error) {
		return nil, &types.ServiceError{Code: "MODEL_FAILED", Message: "could not complete the analysis, please try again"}
	}

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{"scenario": "hm"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}

func TestScan_UnknownErrorNeverLeaks(t *testing.T) {
	env := createTestServer()
	env.assessments.scanFn = func(ctx context.Context, in *service.ScanInput, decision *types.QuotaDecision) (*service.ScanResult, error) {
		return nil, errors.New("pq: connection reset by peer at 10.1.2.3:5432")
	}

	w := doJSON(t, env, "POST", "/api/check-scam", map[string]interface{}{"scenario": "hm"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Message != "An internal error occurred" {
		t.Errorf("Internal detail leaked: %q", resp.Error.Message)
	}
}

func TestActivateBonus(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/activate-bonus", map[string]interface{}{"email": "alice@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["alreadyActivated"] != false {
		t.Errorf("First activation should not report alreadyActivated, got %v", resp)
	}

	// Repeat activation is idempotent.
	w = doJSON(t, env, "POST", "/api/activate-bonus", map[string]interface{}{"email": "alice@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["alreadyActivated"] != true {
		t.Errorf("Repeat activation should report alreadyActivated, got %v", resp)
	}
}

func TestActivateBonus_InvalidEmail(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/activate-bonus", map[string]interface{}{"email": "not-an-email"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSubscribe(t *testing.T) {
	env := createTestServer()
	env.accounts.subscribeFn = func(ctx context.Context, email, source string, newsletter bool) (bool, error) {
		if email != "sub@example.com" || source != "landing" || !newsletter {
			t.Errorf("Unexpected subscribe args: %s %s %v", email, source, newsletter)
		}
		return false, nil
	}

	w := doJSON(t, env, "POST", "/api/subscribe", map[string]interface{}{
		"email":                 "sub@example.com",
		"source":                "landing",
		"subscribeToNewsletter": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCheckAdmin_RequiresEmailParam(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "GET", "/api/check-admin", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	w = doJSON(t, env, "GET", "/api/check-admin?email=a@example.com", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestAdminEmails_Forbidden(t *testing.T) {
	env := createTestServer("root@example.com")

	w := doJSON(t, env, "GET", "/api/admin-emails?email=nobody@example.com", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}

	w = doJSON(t, env, "GET", "/api/admin-emails?email=root@example.com", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["adminEmails"]) != 1 || resp["adminEmails"][0] != "root@example.com" {
		t.Errorf("Unexpected allow-list %v", resp)
	}
}

func TestAddAdminEmail(t *testing.T) {
	env := createTestServer("root@example.com")

	w := doJSON(t, env, "POST", "/api/admin-emails", map[string]interface{}{
		"requesterEmail": "root@example.com",
		"newAdminEmail":  "second@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Non-admin requester is rejected.
	w = doJSON(t, env, "POST", "/api/admin-emails", map[string]interface{}{
		"requesterEmail": "stranger@example.com",
		"newAdminEmail":  "third@example.com",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

func TestRequestExpert(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/request-expert", map[string]interface{}{
		"scenario": "they froze my withdrawal and demand a fee",
		"email":    "victim@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "expert-1" {
		t.Errorf("Expected request id, got %v", resp)
	}
}

func TestRequestExpert_MissingScenario(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "POST", "/api/request-expert", map[string]interface{}{"email": "a@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestUpdateExpertStatusEndpoint(t *testing.T) {
	env := createTestServer()

	var gotID string
	var gotStatus models.ExpertRequestStatus
	env.accounts.expertStatusFn = func(ctx context.Context, requesterEmail, id string, status models.ExpertRequestStatus, assignedTo *string) (*models.ExpertRequest, error) {
		gotID = id
		gotStatus = status
		return &models.ExpertRequest{ID: id, Status: status, AssignedTo: assignedTo}, nil
	}

	w := doJSON(t, env, "PUT", "/api/expert-requests/expert-7/status", map[string]interface{}{
		"requesterEmail": "admin@example.com",
		"status":         "assigned",
		"assignedTo":     "analyst@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotID != "expert-7" || gotStatus != models.ExpertStatusAssigned {
		t.Errorf("Handler passed id=%q status=%q", gotID, gotStatus)
	}

	var resp models.ExpertRequest
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AssignedTo == nil || *resp.AssignedTo != "analyst@example.com" {
		t.Errorf("Expected assignee in response, got %+v", resp)
	}
}

func TestUpdateExpertStatusEndpoint_ForbiddenMapsTo403(t *testing.T) {
	env := createTestServer()
	env.accounts.expertStatusFn = func(ctx context.Context, requesterEmail, id string, status models.ExpertRequestStatus, assignedTo *string) (*models.ExpertRequest, error) {
		return nil, &types.ServiceError{Code: "FORBIDDEN", Message: "must be an admin to manage expert requests"}
	}

	w := doJSON(t, env, "PUT", "/api/expert-requests/expert-7/status", map[string]interface{}{
		"requesterEmail": "someone@example.com",
		"status":         "dismissed",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

func TestUsageStatsEndpoint(t *testing.T) {
	env := createTestServer()

	w := doJSON(t, env, "GET", "/api/usage-stats?email=alice@example.com", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp models.UsageStats
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ScanCount != 3 {
		t.Errorf("Unexpected stats %+v", resp)
	}
}
