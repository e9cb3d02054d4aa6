package models

import (
	"time"

	"github.com/scam-scanner/internal/types"
)

// ScanLog is the immutable audit record written once per admitted and
// completed scan attempt. It is analytics-only and never read back into the
// live request path.
type ScanLog struct {
	ID                 string          `json:"id"`
	ScanTier           types.ScanType  `json:"scanTier"`
	InputShape         string          `json:"inputShape"` // address-only | text-only | both
	Scenario           string          `json:"scenario"`
	SuspiciousAddress  string          `json:"suspiciousAddress,omitempty"`
	UserAddress        string          `json:"userAddress,omitempty"`
	ExtractedAddresses []string        `json:"extractedAddresses,omitempty"`
	UserEmail          *string         `json:"userEmail,omitempty"`
	AdminOverrideUsed  bool            `json:"adminOverrideUsed"`
	RiskLevel          types.RiskLevel `json:"riskLevel"`
	Summary            string          `json:"summary"`
	OnChainData        string          `json:"onChainData"` // JSON blob of gathered facts
	CreatedAt          time.Time       `json:"createdAt"`
}

// PremiumRequest is the immutable record of one gated-feature access attempt
// or email-capture event.
type PremiumRequest struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Feature   string    `json:"feature"` // e.g. "advanced_scan", "expert_investigation"
	IsAdmin   bool      `json:"isAdmin"`
	Details   string    `json:"details"` // free-form JSON blob
	CreatedAt time.Time `json:"createdAt"`
}

// UsageStats aggregates prior audit activity for one email.
type UsageStats struct {
	Email           string `json:"email"`
	ScanCount       uint64 `json:"scanCount"`
	PremiumRequests uint64 `json:"premiumRequests"`
}
