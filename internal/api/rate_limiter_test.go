package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"golang.org/x/time/rate"
)

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter(1, 10)

	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// The burst allowance admits the first requests, then the 1 RPS refill
	// cannot keep up and the gate closes.
	admitted := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			admitted++
		} else if w.Code != http.StatusTooManyRequests {
			t.Fatalf("Unexpected status %d", w.Code)
		}
	}
	if admitted < 1 || admitted > 11 {
		t.Errorf("Expected roughly the burst allowance admitted, got %d", admitted)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 10)

	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the first caller.
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// A different caller still gets through.
	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "10.0.0.2:1000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Second caller should not share the first caller's bucket, got %d", w.Code)
	}
}

func TestRateLimiter_Promote(t *testing.T) {
	rl := NewRateLimiter(1, 100)

	// An existing limiter is upgraded in place.
	limiter := rl.getLimiter("10.0.0.1", false)
	if limiter.Limit() != rate.Limit(1) {
		t.Fatalf("Expected free rate before promotion, got %v", limiter.Limit())
	}
	rl.Promote("10.0.0.1")
	if limiter.Limit() != rate.Limit(100) {
		t.Errorf("Expected premium rate after promotion, got %v", limiter.Limit())
	}

	// A caller with no limiter yet starts at the premium rate.
	rl.Promote("10.0.0.2")
	if got := rl.getLimiter("10.0.0.2", false).Limit(); got != rate.Limit(100) {
		t.Errorf("Expected premium rate for promoted newcomer, got %v", got)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rl.getLimiter("shared-key", false)
			rl.getLimiter("shared-key", true)
		}(i)
	}
	wg.Wait()

	if len(rl.limiters) != 1 {
		t.Errorf("Expected a single limiter for the shared key, got %d", len(rl.limiters))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("clientIP = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP with XFF = %q, want 203.0.113.7", got)
	}
}
