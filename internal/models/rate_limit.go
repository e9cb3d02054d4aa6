package models

import (
	"time"

	"github.com/scam-scanner/internal/types"
)

// RateLimitRecord is one per-(key, endpoint, UTC day) request counter.
// The key is an email when the caller supplied one, otherwise the client IP.
// Counters never decrement; the daily reset is implicit in the key rollover.
type RateLimitRecord struct {
	ID            string                 `json:"id" db:"id"`
	Key           string                 `json:"key" db:"limit_key"`
	Category      types.EndpointCategory `json:"category" db:"category"`
	Day           string                 `json:"day" db:"day"` // UTC date, YYYY-MM-DD
	RequestCount  int                    `json:"requestCount" db:"request_count"`
	LastRequestAt time.Time              `json:"lastRequestAt" db:"last_request_at"`
}

// BonusPrompt is a one-per-(email, day) bonus allocation unlocked by email
// capture. Expiry is the end of the activation day, checked independently of
// the used count.
type BonusPrompt struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Day       string    `json:"day" db:"day"`
	UsedCount int       `json:"usedCount" db:"used_count"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
