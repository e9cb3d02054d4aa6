package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is the coarse per-caller requests-per-second gate. It protects
// the process from floods; the authoritative daily allowance lives in the
// quota ledger behind it.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	freeLimit    rate.Limit
	premiumLimit rate.Limit
	burstSize    int
}

// NewRateLimiter creates a new per-IP rate limiter
func NewRateLimiter(freeRPS, premiumRPS int) *RateLimiter {
	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		freeLimit:    rate.Limit(freeRPS),
		premiumLimit: rate.Limit(premiumRPS),
		burstSize:    10,
	}
}

// getLimiter returns the limiter for a caller key, creating it on first use.
func (rl *RateLimiter) getLimiter(key string, premium bool) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	limit := rl.freeLimit
	if premium {
		limit = rl.premiumLimit
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(limit, rl.burstSize)
	rl.limiters[key] = limiter

	return limiter
}

// Promote switches a caller's limiter to the premium rate. The quota gate
// calls this once entitlement resolution proves the caller premium; new
// callers start at the free rate until their first resolved request.
func (rl *RateLimiter) Promote(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[key]; exists {
		limiter.SetLimit(rl.premiumLimit)
		return
	}
	rl.limiters[key] = rate.NewLimiter(rl.premiumLimit, rl.burstSize)
}

// RateLimitMiddleware enforces the per-IP RPS gate.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(clientIP(r), false)
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"Too many requests. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
