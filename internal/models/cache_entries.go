package models

import (
	"time"

	"github.com/scam-scanner/internal/types"
)

// CryptoTerm is a cached beginner-depth explanation of one term.
// Only beginner-depth results are persisted; other audience depths always
// trigger a fresh model call and never overwrite the beginner entry.
type CryptoTerm struct {
	ID           string    `json:"id" db:"id"`
	Term         string    `json:"term" db:"term"` // normalized (trimmed, lower-cased)
	Explanation  string    `json:"explanation" db:"explanation"`
	RelatedTerms []string  `json:"relatedTerms" db:"related_terms"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// ScamCheck is a cached basic-tier, text-only scan result, keyed on a hash of
// the normalized scenario text. Address-bearing or advanced requests are never
// memoized because on-chain data is live.
type ScamCheck struct {
	ID           string          `json:"id" db:"id"`
	ScenarioHash string          `json:"scenarioHash" db:"scenario_hash"`
	Scenario     string          `json:"scenario" db:"scenario"`
	RiskLevel    types.RiskLevel `json:"riskLevel" db:"risk_level"`
	Summary      string          `json:"summary" db:"summary"`
	RedFlags     []string        `json:"redFlags" db:"red_flags"`
	SafetyTips   []string        `json:"safetyTips" db:"safety_tips"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}
