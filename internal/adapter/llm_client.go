package adapter

import (
	"context"

	"github.com/scam-scanner/internal/types"
)

// TermExplanation is the model's answer to a terminology question.
type TermExplanation struct {
	Explanation  string   `json:"explanation"`
	RelatedTerms []string `json:"related_terms"`
}

// RiskPrompt carries everything the model needs to judge a scenario. The
// on-chain context is the already-rendered analyzer report, empty when no
// addresses were involved.
type RiskPrompt struct {
	Scenario       string
	OnChainContext string
}

// RiskAssessment is the model's judgement of a scenario.
type RiskAssessment struct {
	RiskLevel  types.RiskLevel `json:"risk_level"`
	Summary    string          `json:"summary"`
	RedFlags   []string        `json:"red_flags"`
	SafetyTips []string        `json:"safety_tips"`
}

// LLMClient is the port to the language model backend.
type LLMClient interface {
	// ExplainTerm explains a crypto term at the requested depth.
	ExplainTerm(ctx context.Context, term string, audience types.AudienceType) (*TermExplanation, error)

	// AssessScenario judges a scam scenario, optionally informed by on-chain
	// evidence.
	AssessScenario(ctx context.Context, prompt *RiskPrompt) (*RiskAssessment, error)
}
