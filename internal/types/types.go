// Package types provides common type definitions for the scam scanner system.
package types

// UserTier represents the entitlement tier of a caller
type UserTier string

const (
	// TierFree represents anonymous or email-less callers with the base daily allowance
	TierFree UserTier = "free"
	// TierPremium represents callers with a premium entitlement
	TierPremium UserTier = "premium"
	// TierAdmin represents allow-listed administrators with no quota
	TierAdmin UserTier = "admin"
)

// EndpointCategory identifies the quota bucket a request counts against
type EndpointCategory string

const (
	// CategoryTranslate covers term-explanation requests
	CategoryTranslate EndpointCategory = "translate"
	// CategoryScan covers scam-check requests
	CategoryScan EndpointCategory = "scan"
	// CategoryExpert covers expert follow-up requests
	CategoryExpert EndpointCategory = "expert"
)

// ScanType represents the requested depth of an on-chain analysis
type ScanType string

const (
	// ScanBasic is the cost-bounded analysis available to every admitted request
	ScanBasic ScanType = "basic"
	// ScanAdvanced is the deep analysis gated behind premium/admin entitlement
	ScanAdvanced ScanType = "advanced"
)

// AudienceType represents the requested depth of a term explanation
type AudienceType string

const (
	AudienceBeginner     AudienceType = "beginner"
	AudienceIntermediate AudienceType = "intermediate"
	AudienceExpert       AudienceType = "expert"
)

// Valid reports whether the audience is one of the known depths.
func (a AudienceType) Valid() bool {
	switch a {
	case AudienceBeginner, AudienceIntermediate, AudienceExpert:
		return true
	}
	return false
}

// RiskLevel is the model-assigned risk classification for a scenario
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether the risk level is one of the known classifications.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// AddressRole describes how an address entered a scan request
type AddressRole string

const (
	// RoleSuspicious is an explicitly submitted suspicious address
	RoleSuspicious AddressRole = "suspicious"
	// RoleUser is the caller's own wallet address
	RoleUser AddressRole = "user"
	// RoleExtracted is an address auto-detected in free text
	RoleExtracted AddressRole = "extracted"
)

// StoreErrorPolicy decides what happens when the record store is unreachable
// during a gating check. Read-side checks (quota, entitlement) fail open;
// write-gated admin mutations fail closed.
type StoreErrorPolicy string

const (
	PolicyAdmit  StoreErrorPolicy = "admit"
	PolicyReject StoreErrorPolicy = "reject"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ReportSection is the structured intermediate representation of one block of
// an on-chain report. The API layer renders sections to text; the analyzer
// stays free of presentation concerns.
type ReportSection struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Render flattens an ordered section list into a display string.
func RenderSections(sections []ReportSection) string {
	out := ""
	for i, s := range sections {
		if i > 0 {
			out += "\n\n"
		}
		out += "## " + s.Title
		for _, line := range s.Lines {
			out += "\n" + line
		}
	}
	return out
}

// OnChainFacts is the machine-oriented summary of everything gathered for one
// address. Pointer fields are nil when the underlying lookup failed or was
// skipped for the requested tier.
type OnChainFacts struct {
	Address          string   `json:"address"`
	Valid            bool     `json:"valid"`
	BalanceWei       *string  `json:"balanceWei,omitempty"`
	BalanceEth       *float64 `json:"balanceEth,omitempty"`
	IsContract       *bool    `json:"isContract,omitempty"`
	ContractVerified *bool    `json:"contractVerified,omitempty"`
	ContractName     *string  `json:"contractName,omitempty"`
	ContractCreator  *string  `json:"contractCreator,omitempty"`
	TxCount          *int     `json:"txCount,omitempty"`
	InternalTxCount  *int     `json:"internalTxCount,omitempty"`
	TokenTxCount     *int     `json:"tokenTxCount,omitempty"`
	FirstSeen        *int64   `json:"firstSeen,omitempty"` // unix seconds
	LastSeen         *int64   `json:"lastSeen,omitempty"`
	KnownEntity      *string  `json:"knownEntity,omitempty"`
	SuspiciousFlags  []string `json:"suspiciousFlags,omitempty"`
}

// QuotaDecision is the outcome of a quota-ledger check
type QuotaDecision struct {
	Allowed        bool `json:"allowed"`
	Current        int  `json:"current"`
	Limit          int  `json:"limit"`
	IsAdmin        bool `json:"isAdmin"`
	IsPremium      bool `json:"isPremium"`
	HasBonus       bool `json:"hasBonus"`
	BonusRemaining int  `json:"bonusRemaining"`
	// UsedBonus is true when admission was granted by consuming a bonus unit
	// rather than by the primary daily allowance.
	UsedBonus        bool   `json:"usedBonus"`
	BonusRecordID    string `json:"-"`
	AlreadyUsedBonus bool   `json:"alreadyUsedBonus"`
}

// BonusStatus reports the state of a caller's daily bonus allotment
type BonusStatus struct {
	HasBonus  bool `json:"hasBonusPrompts"`
	Remaining int  `json:"remainingBonusPrompts"`
	UsedToday bool `json:"alreadyUsedToday"`
}
