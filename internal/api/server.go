// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/service"
	"github.com/scam-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// AssessmentServiceInterface defines the interface for assessment operations
type AssessmentServiceInterface interface {
	Translate(ctx context.Context, in *service.TranslateInput, decision *types.QuotaDecision) (*service.TranslateResult, error)
	Scan(ctx context.Context, in *service.ScanInput, decision *types.QuotaDecision) (*service.ScanResult, error)
}

// AccountServiceInterface defines the interface for account operations
type AccountServiceInterface interface {
	RequestExpert(ctx context.Context, in *service.ExpertInput, decision *types.QuotaDecision) (*models.ExpertRequest, error)
	UpdateExpertStatus(ctx context.Context, requesterEmail, id string, status models.ExpertRequestStatus, assignedTo *string) (*models.ExpertRequest, error)
	Subscribe(ctx context.Context, email, source string, subscribeToNewsletter bool) (bool, error)
	CheckAdmin(ctx context.Context, email string) (*service.AdminCheck, error)
	UsageStats(ctx context.Context, email string) (*models.UsageStats, error)
}

// StorePinger reports reachability of a backing store for the health endpoint.
type StorePinger interface {
	Ping(ctx context.Context) error
}

type namedStore struct {
	name  string
	store StorePinger
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	assessments AssessmentServiceInterface
	accounts    AccountServiceInterface
	quota       *service.QuotaService
	resolver    *service.EntitlementResolver
	config      *ServerConfig
	stores      []namedStore
	rateLimiter *RateLimiter
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FreeRPS         int
	PremiumRPS      int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	assessments AssessmentServiceInterface,
	accounts AccountServiceInterface,
	quota *service.QuotaService,
	resolver *service.EntitlementResolver,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		assessments: assessments,
		accounts:    accounts,
		quota:       quota,
		resolver:    resolver,
		config:      config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.rateLimiter = NewRateLimiter(s.config.FreeRPS, s.config.PremiumRPS)

	// Middleware order matters: logging wraps everything, the RPS gate sits
	// in front of every route, and per-category quota gates attach per route.
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(s.rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Quota-gated endpoints: the gate checks the daily ledger, injects
	// X-RateLimit-* headers, and rejects over-quota callers with the
	// structured 429 payload.
	translateGate := QuotaGateMiddleware(s.quota, types.CategoryTranslate, s.rateLimiter)
	scanGate := QuotaGateMiddleware(s.quota, types.CategoryScan, s.rateLimiter)
	expertGate := QuotaGateMiddleware(s.quota, types.CategoryExpert, s.rateLimiter)

	api.Handle("/translate", translateGate(http.HandlerFunc(s.handleTranslate))).Methods("POST")
	api.Handle("/check-scam", scanGate(http.HandlerFunc(s.handleScan))).Methods("POST")
	api.Handle("/request-expert", expertGate(http.HandlerFunc(s.handleRequestExpert))).Methods("POST")

	// Account endpoints are admission-exempt, a caller must always be able to
	// unlock the bonus or express premium interest while over quota. They
	// still report quota state through the headers-only gate; the scan
	// category is the allowance the headers describe.
	quotaInfo := QuotaHeadersMiddleware(s.quota, types.CategoryScan, s.rateLimiter)

	api.Handle("/activate-bonus", quotaInfo(http.HandlerFunc(s.handleActivateBonus))).Methods("POST")
	api.Handle("/subscribe", quotaInfo(http.HandlerFunc(s.handleSubscribe))).Methods("POST")
	api.Handle("/check-admin", quotaInfo(http.HandlerFunc(s.handleCheckAdmin))).Methods("GET")
	api.Handle("/admin-emails", quotaInfo(http.HandlerFunc(s.handleListAdminEmails))).Methods("GET")
	api.Handle("/admin-emails", quotaInfo(http.HandlerFunc(s.handleAddAdminEmail))).Methods("POST")
	api.Handle("/usage-stats", quotaInfo(http.HandlerFunc(s.handleUsageStats))).Methods("GET")
	api.Handle("/expert-requests/{id}/status", quotaInfo(http.HandlerFunc(s.handleUpdateExpertStatus))).Methods("PUT")
}

// RegisterStore adds a named backing store to the health check. Call before
// Start; registration is not safe once the server is serving.
func (s *Server) RegisterStore(name string, store StorePinger) {
	s.stores = append(s.stores, namedStore{name: name, store: store})
}

// handleHealth handles health check requests. Each registered store is pinged
// with a short deadline; one unreachable store degrades the whole report.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	stores := make(map[string]string, len(s.stores))
	for _, ns := range s.stores {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := ns.store.Ping(ctx)
		cancel()
		if err != nil {
			logging.GetGlobalLogger().WithError(err).WithField("store", ns.name).Error("health check failed")
			stores[ns.name] = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		stores[ns.name] = "ok"
	}

	resp := map[string]interface{}{
		"status":  status,
		"service": "scam-scanner",
	}
	if len(stores) > 0 {
		resp["stores"] = stores
	}
	respondJSON(w, code, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}
