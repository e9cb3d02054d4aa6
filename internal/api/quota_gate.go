package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/scam-scanner/internal/service"
	"github.com/scam-scanner/internal/types"
)

type contextKey string

const decisionContextKey contextKey = "quotaDecision"

// maxPeekSize bounds how much body the gate will buffer to find the email.
const maxPeekSize = 1 << 20

// QuotaRejection is the structured 429 payload. It carries remediation data:
// the caller learns about the bonus path and the premium upsell instead of a
// bare rejection.
type QuotaRejection struct {
	Message               string `json:"message"`
	Current               int    `json:"current"`
	Limit                 int    `json:"limit"`
	IsAdmin               bool   `json:"isAdmin"`
	IsPremium             bool   `json:"isPremium"`
	HasBonusPrompts       bool   `json:"hasBonusPrompts"`
	BonusPromptsRemaining int    `json:"bonusPromptsRemaining"`
	NeedsEmail            bool   `json:"needsEmail"`
	AlreadyUsedBonusToday bool   `json:"alreadyUsedBonusToday"`
}

// QuotaGateMiddleware runs the daily quota check for one endpoint category.
// Quota headers are injected whether or not the request is admitted; admitted
// requests carry the decision in context for the handler to commit. Premium
// callers are promoted to the higher RPS rate as a side effect.
func QuotaGateMiddleware(quota *service.QuotaService, category types.EndpointCategory, rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := peekEmail(r)
			decision := quota.Check(r.Context(), clientIP(r), category, email)

			setQuotaHeaders(w, decision)
			if decision.IsPremium && rl != nil {
				rl.Promote(clientIP(r))
			}

			if !decision.Allowed {
				respondJSON(w, http.StatusTooManyRequests, QuotaRejection{
					Message:               "Daily limit reached. Add your email to unlock bonus checks, or upgrade for a higher allowance.",
					Current:               decision.Current,
					Limit:                 decision.Limit,
					IsAdmin:               decision.IsAdmin,
					IsPremium:             decision.IsPremium,
					HasBonusPrompts:       decision.HasBonus,
					BonusPromptsRemaining: decision.BonusRemaining,
					NeedsEmail:            email == "",
					AlreadyUsedBonusToday: decision.AlreadyUsedBonus,
				})
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey, decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// QuotaHeadersMiddleware reports quota state without enforcing it. The
// account endpoints stay admission-exempt so a caller can still unlock the
// bonus or express premium interest while over quota, but every response
// carries the X-RateLimit headers describing their allowance.
func QuotaHeadersMiddleware(quota *service.QuotaService, category types.EndpointCategory, rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := quota.Check(r.Context(), clientIP(r), category, peekEmail(r))

			setQuotaHeaders(w, decision)
			if decision.IsPremium && rl != nil {
				rl.Promote(clientIP(r))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// decisionFromContext returns the gate's decision for this request. Handlers
// behind the gate always find one; the zero decision is a safe fallback for
// direct handler tests.
func decisionFromContext(ctx context.Context) *types.QuotaDecision {
	if d, ok := ctx.Value(decisionContextKey).(*types.QuotaDecision); ok {
		return d
	}
	return &types.QuotaDecision{Allowed: true}
}

func setQuotaHeaders(w http.ResponseWriter, decision *types.QuotaDecision) {
	remaining := decision.Limit - decision.Current
	if remaining < 0 {
		remaining = 0
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", endOfUTCDay(time.Now()).Format(time.RFC3339))
	w.Header().Set("X-RateLimit-Admin", strconv.FormatBool(decision.IsAdmin))
	w.Header().Set("X-RateLimit-Premium", strconv.FormatBool(decision.IsPremium))
	w.Header().Set("X-RateLimit-Bonus-Remaining", strconv.Itoa(decision.BonusRemaining))
}

func endOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// peekEmail extracts the caller's email without consuming the request: from
// the query string for GETs, from a buffered copy of the JSON body for POSTs.
func peekEmail(r *http.Request) string {
	if email := r.URL.Query().Get("email"); email != "" {
		return email
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekSize))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var peek struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	return peek.Email
}
