// Package tierpolicy implements the static authorization matrix:
// {tier → tool → {enabled, monthly_quota, ai_allowed, spread_subtypes}}.
// The gateway consults it twice per request: once to authorize a tool,
// once (for options_risk_analysis) to authorize a spread subtype.
package tierpolicy

import (
	"encoding/json"
	"fmt"
	"os"

	"sentinel/internal/apperr"
	"sentinel/internal/spread"
)

// Tier is the subscription class gating tool access, quotas, and AI use.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierMax  Tier = "max"
)

// Unlimited marks a tool with no monthly cap (max tier).
const Unlimited = -1

// Tool enumerates the nine dispatchable operations.
type Tool string

const (
	ToolAnalyzeSecurity     Tool = "analyze_security"
	ToolAnalyzeFibonacci    Tool = "analyze_fibonacci"
	ToolGetTradePlan        Tool = "get_trade_plan"
	ToolCompareSecurities   Tool = "compare_securities"
	ToolScreenSecurities    Tool = "screen_securities"
	ToolScanTrades          Tool = "scan_trades"
	ToolPortfolioRisk       Tool = "portfolio_risk"
	ToolMorningBrief        Tool = "morning_brief"
	ToolOptionsRiskAnalysis Tool = "options_risk_analysis"
)

// AllTools is the full dispatch table, in canonical order.
var AllTools = []Tool{
	ToolAnalyzeSecurity, ToolAnalyzeFibonacci, ToolGetTradePlan,
	ToolCompareSecurities, ToolScreenSecurities, ToolScanTrades,
	ToolPortfolioRisk, ToolMorningBrief, ToolOptionsRiskAnalysis,
}

// Rule is one tier's policy for one tool.
type Rule struct {
	Enabled        bool         `json:"enabled"`
	MonthlyQuota   int          `json:"monthly_quota"`
	AIAllowed      bool         `json:"ai_allowed"`
	SpreadSubtypes []spread.Type `json:"spread_subtypes,omitempty"`
}

// Matrix is the full tier → tool → Rule table.
type Matrix map[Tier]map[Tool]Rule

// curatedFreeTools is the free tier's curated subset of dispatchable
// tools. Screening, scanning, portfolio and spread analysis are reserved
// for pro/max; free callers get the single-symbol read operations and the
// morning brief.
var curatedFreeTools = []Tool{
	ToolAnalyzeSecurity, ToolAnalyzeFibonacci, ToolGetTradePlan, ToolMorningBrief,
}

var allSpreadTypes = []spread.Type{
	spread.TypeCallCredit, spread.TypePutCredit, spread.TypeCallDebit,
	spread.TypePutDebit, spread.TypeIronCondor, spread.TypeIronButterfly,
}

// verticalSpreadTypes is the pro-tier subset: the four verticals, no wings.
var verticalSpreadTypes = []spread.Type{
	spread.TypeCallCredit, spread.TypePutCredit, spread.TypeCallDebit, spread.TypePutDebit,
}

// freeMonthlyQuota and proMonthlyQuota are the default per-tool monthly
// quotas; Default builds the matrix with these baked in, and LoadOverride
// lets an operator replace the whole thing from a file.
const (
	freeMonthlyQuota = 30
	proMonthlyQuota  = 1000
)

// Default builds the built-in tier matrix.
func Default() Matrix {
	m := Matrix{
		TierFree: {},
		TierPro:  {},
		TierMax:  {},
	}
	free := map[Tool]bool{}
	for _, t := range curatedFreeTools {
		free[t] = true
	}
	for _, tool := range AllTools {
		m[TierFree][tool] = Rule{Enabled: free[tool], MonthlyQuota: freeMonthlyQuota, AIAllowed: false}
		proRule := Rule{Enabled: true, MonthlyQuota: proMonthlyQuota, AIAllowed: true}
		if tool == ToolOptionsRiskAnalysis {
			proRule.SpreadSubtypes = verticalSpreadTypes
		}
		m[TierPro][tool] = proRule
		maxRule := Rule{Enabled: true, MonthlyQuota: Unlimited, AIAllowed: true}
		if tool == ToolOptionsRiskAnalysis {
			maxRule.SpreadSubtypes = allSpreadTypes
		}
		m[TierMax][tool] = maxRule
	}
	return m
}

// LoadOverride reads a JSON tier-matrix override file. The file fully
// replaces the built-in matrix; it is not merged.
func LoadOverride(path string) (Matrix, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tierpolicy: read override %s: %w", path, err)
	}
	var m Matrix
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("tierpolicy: parse override %s: %w", path, err)
	}
	return m, nil
}

// Authorize returns the Rule governing tier's use of tool, or
// apperr.ErrTierDenied if the tool does not exist for that tier or is
// disabled.
func (m Matrix) Authorize(tier Tier, tool Tool) (Rule, error) {
	tools, ok := m[tier]
	if !ok {
		return Rule{}, fmt.Errorf("tierpolicy: unknown tier %q: %w", tier, apperr.ErrTierDenied)
	}
	rule, ok := tools[tool]
	if !ok || !rule.Enabled {
		return Rule{}, fmt.Errorf("tierpolicy: %s not enabled for tier %s: %w", tool, tier, apperr.ErrTierDenied)
	}
	return rule, nil
}

// AuthorizeSpread additionally checks spreadType against the rule's allowed
// subtypes, used only for options_risk_analysis dispatch.
func (r Rule) AuthorizeSpread(spreadType spread.Type) error {
	for _, allowed := range r.SpreadSubtypes {
		if allowed == spreadType {
			return nil
		}
	}
	return fmt.Errorf("tierpolicy: spread type %s not permitted: %w", spreadType, apperr.ErrTierDenied)
}

// ParseTier validates a tier string resolved from the bearer token.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPro, TierMax:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("tierpolicy: unknown tier %q: %w", s, apperr.ErrValidation)
	}
}
