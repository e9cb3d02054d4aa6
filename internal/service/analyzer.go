package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/scam-scanner/internal/adapter"
	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/types"
)

// ChainLookup is the slice of the blockchain-data client the analyzer needs.
type ChainLookup interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	Activity(ctx context.Context, address string) (*adapter.ActivitySummary, error)
	InternalTxCount(ctx context.Context, address string) (int, error)
	TokenTxCount(ctx context.Context, address string) (int, error)
	Contract(ctx context.Context, address string) (*adapter.ContractInfo, error)
}

// AddressTarget is one address to analyze, tagged with how it entered the
// request.
type AddressTarget struct {
	Address string
	Role    types.AddressRole
}

// AddressAnalysis is the per-address result: structured facts for the audit
// trail, a report section for display, and a compact summary for prompting.
type AddressAnalysis struct {
	Address       string              `json:"address"`
	Role          types.AddressRole   `json:"role"`
	Facts         *types.OnChainFacts `json:"facts"`
	Section       types.ReportSection `json:"section"`
	PromptSummary string              `json:"-"`

	recentTxs []adapter.AccountTx
}

var sectionTitles = map[types.AddressRole]string{
	types.RoleSuspicious: "Suspicious Address Analysis",
	types.RoleUser:       "Your Wallet Analysis",
	types.RoleExtracted:  "Detected Address Analysis",
}

// Analyzer wraps the blockchain-data lookup service and produces tiered
// per-address reports. Every sub-lookup failure degrades to an omitted line,
// never an aborted analysis.
type Analyzer struct {
	chain         ChainLookup
	lookupTimeout time.Duration
}

// NewAnalyzer creates a new on-chain analyzer
func NewAnalyzer(chain ChainLookup, lookupTimeout time.Duration) *Analyzer {
	return &Analyzer{chain: chain, lookupTimeout: lookupTimeout}
}

// AnalyzeAll analyzes each distinct target concurrently. Case-insensitive
// duplicates collapse to the first occurrence, and results come back in input
// order regardless of completion order.
func (a *Analyzer) AnalyzeAll(ctx context.Context, targets []AddressTarget, tier types.ScanType) []*AddressAnalysis {
	seen := make(map[string]struct{}, len(targets))
	distinct := make([]AddressTarget, 0, len(targets))
	for _, t := range targets {
		key := strings.ToLower(strings.TrimSpace(t.Address))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		distinct = append(distinct, t)
	}

	results := make([]*AddressAnalysis, len(distinct))
	var wg sync.WaitGroup
	for i, target := range distinct {
		wg.Add(1)
		go func(i int, target AddressTarget) {
			defer wg.Done()
			results[i] = a.Analyze(ctx, target, tier)
		}(i, target)
	}
	wg.Wait()

	return results
}

// Analyze inspects a single address at the requested tier. Never returns an
// error: an invalid address yields an "invalid address" report, and lookup
// failures yield whatever facts were gathered before they struck.
func (a *Analyzer) Analyze(ctx context.Context, target AddressTarget, tier types.ScanType) *AddressAnalysis {
	address := strings.TrimSpace(target.Address)
	analysis := &AddressAnalysis{
		Address: address,
		Role:    target.Role,
		Facts:   &types.OnChainFacts{Address: address},
		Section: types.ReportSection{Title: sectionTitles[target.Role]},
	}

	if !common.IsHexAddress(address) {
		analysis.Section.Lines = []string{fmt.Sprintf("Invalid address format: %s", address)}
		analysis.PromptSummary = fmt.Sprintf("%s: invalid address, no on-chain data", address)
		return analysis
	}
	analysis.Facts.Valid = true

	ctx, cancel := context.WithTimeout(ctx, a.lookupTimeout)
	defer cancel()

	// Static identity first: it costs nothing and gives free-tier users
	// exchange/notable-account context without a live lookup.
	if name, ok := KnownEntity(address); ok {
		analysis.Facts.KnownEntity = &name
	}

	a.gatherBasic(ctx, analysis)
	if tier == types.ScanAdvanced {
		a.gatherDeep(ctx, analysis)
		a.detectSuspiciousPatterns(analysis)
	}

	analysis.Section.Lines = renderFactLines(analysis.Facts, tier)
	analysis.PromptSummary = renderPromptSummary(analysis.Facts)
	return analysis
}

func (a *Analyzer) gatherBasic(ctx context.Context, analysis *AddressAnalysis) {
	logger := logging.FromContext(ctx).WithField("address", analysis.Address)
	facts := analysis.Facts

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		wei, err := a.chain.Balance(ctx, analysis.Address)
		if err != nil {
			logger.WithError(err).Warn("balance lookup failed, omitting")
			return
		}
		s := wei.String()
		eth := weiToEth(wei)
		facts.BalanceWei = &s
		facts.BalanceEth = &eth
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		info, err := a.chain.Contract(ctx, analysis.Address)
		if err != nil {
			logger.WithError(err).Warn("contract lookup failed, omitting")
			return
		}
		facts.IsContract = &info.IsContract
		if info.IsContract {
			facts.ContractVerified = &info.Verified
			if info.Name != "" {
				facts.ContractName = &info.Name
			}
			if info.Creator != "" {
				facts.ContractCreator = &info.Creator
			}
		}
	}()

	wg.Wait()
}

func (a *Analyzer) gatherDeep(ctx context.Context, analysis *AddressAnalysis) {
	logger := logging.FromContext(ctx).WithField("address", analysis.Address)
	facts := analysis.Facts

	var wg sync.WaitGroup
	var recent []adapter.AccountTx

	wg.Add(1)
	go func() {
		defer wg.Done()
		activity, err := a.chain.Activity(ctx, analysis.Address)
		if err != nil {
			logger.WithError(err).Warn("activity lookup failed, omitting")
			return
		}
		facts.TxCount = &activity.TxCount
		if activity.FirstSeen != nil {
			first := activity.FirstSeen.Unix()
			facts.FirstSeen = &first
		}
		if activity.LastSeen != nil {
			last := activity.LastSeen.Unix()
			facts.LastSeen = &last
		}
		recent = activity.Recent
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		count, err := a.chain.InternalTxCount(ctx, analysis.Address)
		if err != nil {
			logger.WithError(err).Warn("internal tx lookup failed, omitting")
			return
		}
		facts.InternalTxCount = &count
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		count, err := a.chain.TokenTxCount(ctx, analysis.Address)
		if err != nil {
			logger.WithError(err).Warn("token tx lookup failed, omitting")
			return
		}
		facts.TokenTxCount = &count
	}()

	wg.Wait()
	analysis.recentTxs = recent
}

// detectSuspiciousPatterns runs the deep-tier heuristics over whatever facts
// were gathered. Each flag is advisory input for the model, not a verdict.
func (a *Analyzer) detectSuspiciousPatterns(analysis *AddressAnalysis) {
	facts := analysis.Facts
	var flags []string

	if facts.TxCount != nil && *facts.TxCount < 5 {
		flags = append(flags, "very low transaction count, likely a new or burner wallet")
	}
	if facts.BalanceEth != nil && *facts.BalanceEth < 0.001 {
		flags = append(flags, "near-zero balance")
	}
	if facts.IsContract != nil && *facts.IsContract {
		flags = append(flags, "contract address, not a personal wallet")
	}
	if dest, ok := repeatedDestination(analysis.Address, analysis.recentTxs); ok {
		flags = append(flags, fmt.Sprintf("repeated destination pattern: most outgoing funds go to %s", dest))
	}

	facts.SuspiciousFlags = flags
}

// repeatedDestination reports a dominant outgoing destination across the
// recent sample: at least 5 outgoing transfers with one recipient taking 60%
// or more of them.
func repeatedDestination(address string, txs []adapter.AccountTx) (string, bool) {
	self := strings.ToLower(address)
	counts := make(map[string]int)
	outgoing := 0
	for _, tx := range txs {
		if strings.ToLower(tx.From) != self || tx.To == "" {
			continue
		}
		outgoing++
		counts[strings.ToLower(tx.To)]++
	}
	if outgoing < 5 {
		return "", false
	}
	for dest, n := range counts {
		if n*100 >= outgoing*60 {
			return dest, true
		}
	}
	return "", false
}

func renderFactLines(facts *types.OnChainFacts, tier types.ScanType) []string {
	var lines []string

	if facts.KnownEntity != nil {
		lines = append(lines, fmt.Sprintf("Identity: %s", *facts.KnownEntity))
	}
	if facts.BalanceEth != nil {
		lines = append(lines, fmt.Sprintf("Balance: %.6f ETH", *facts.BalanceEth))
	}
	switch {
	case facts.IsContract == nil:
		lines = append(lines, "Account type: unavailable")
	case !*facts.IsContract:
		lines = append(lines, "Account type: regular wallet (externally owned account)")
	case facts.ContractVerified != nil && *facts.ContractVerified:
		name := "unnamed"
		if facts.ContractName != nil {
			name = *facts.ContractName
		}
		lines = append(lines, fmt.Sprintf("Account type: verified contract (%s)", name))
	default:
		lines = append(lines, "Account type: unverified contract")
	}
	if facts.ContractCreator != nil {
		lines = append(lines, fmt.Sprintf("Contract creator: %s", *facts.ContractCreator))
	}
	if facts.KnownEntity == nil && facts.IsContract != nil && !*facts.IsContract {
		lines = append(lines, "Identity: unknown, not on any known-entity list")
	}

	if tier != types.ScanAdvanced {
		return lines
	}

	if facts.TxCount != nil {
		lines = append(lines, fmt.Sprintf("Transactions (recent sample): %d", *facts.TxCount))
	}
	if facts.InternalTxCount != nil {
		lines = append(lines, fmt.Sprintf("Internal transactions (recent sample): %d", *facts.InternalTxCount))
	}
	if facts.TokenTxCount != nil {
		lines = append(lines, fmt.Sprintf("Token transfers (recent sample): %d", *facts.TokenTxCount))
	}
	if facts.FirstSeen != nil {
		lines = append(lines, fmt.Sprintf("First activity: %s", time.Unix(*facts.FirstSeen, 0).UTC().Format("2006-01-02")))
	}
	if facts.LastSeen != nil {
		lines = append(lines, fmt.Sprintf("Last activity: %s", time.Unix(*facts.LastSeen, 0).UTC().Format("2006-01-02")))
	}
	for _, flag := range facts.SuspiciousFlags {
		lines = append(lines, fmt.Sprintf("Warning: %s", flag))
	}

	return lines
}

func renderPromptSummary(facts *types.OnChainFacts) string {
	parts := []string{facts.Address + ":"}
	if facts.KnownEntity != nil {
		parts = append(parts, "known as "+*facts.KnownEntity+",")
	}
	if facts.BalanceEth != nil {
		parts = append(parts, fmt.Sprintf("balance %.4f ETH,", *facts.BalanceEth))
	}
	if facts.IsContract != nil {
		if *facts.IsContract {
			parts = append(parts, "contract account,")
		} else {
			parts = append(parts, "regular wallet,")
		}
	}
	if facts.TxCount != nil {
		parts = append(parts, fmt.Sprintf("%d recent transactions,", *facts.TxCount))
	}
	if len(facts.SuspiciousFlags) > 0 {
		parts = append(parts, "flags: "+strings.Join(facts.SuspiciousFlags, "; "))
	}
	if len(parts) == 1 {
		parts = append(parts, "no on-chain data available")
	}
	return strings.TrimSuffix(strings.Join(parts, " "), ",")
}

func weiToEth(wei *big.Int) float64 {
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	out, _ := eth.Float64()
	return out
}
