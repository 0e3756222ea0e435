// Package gateway implements ExecutionGateway: the tier-gated,
// quota-metered, persisted entrypoint to the engine's nine analytical
// tools. Its Execute method walks a fixed state machine:
// Authorized(tier,tool) → QuotaChecked → RunCreated(running) → Executed →
// Persisted(success|error) → Filtered → Responded. Authenticating the
// caller precedes Execute and is internal/httpapi's responsibility.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sentinel/internal/apperr"
	"sentinel/internal/brief"
	"sentinel/internal/logging"
	"sentinel/internal/metrics"
	"sentinel/internal/quote"
	"sentinel/internal/scanner"
	"sentinel/internal/store"
	"sentinel/internal/tierpolicy"
	"sentinel/internal/universe"
)

// schemaVersion is embedded in every persisted result payload so a future
// format change can be detected and migrated by readers.
const schemaVersion = 1

// publicCacheTTL is the staleness window before a successful result is
// eligible to refresh the public landing cache.
const publicCacheTTL = 5 * time.Minute

// Identity is the (user_id, tier) pair the caller's auth layer resolves
// from the bearer token.
type Identity struct {
	UserID string
	Tier   tierpolicy.Tier
}

// Usage is the usage.count/limit pair returned on every successful
// dispatch.
type Usage struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// ExecuteResponse is the `/execute` 200 body.
type ExecuteResponse struct {
	RunID       string          `json:"run_id"`
	Result      json.RawMessage `json:"result"`
	ExecutionMS int64           `json:"execution_ms"`
	Usage       Usage           `json:"usage"`
}

// Gateway wires the tier matrix, quota/run/preset store, and the
// already-built analysis packages into the nine-tool dispatch table.
type Gateway struct {
	Store    *store.Store
	Tiers    tierpolicy.Matrix
	Analyzer *scanner.Analyzer
	Scanner  *scanner.Scanner
	Source   quote.Source
	Brief    *brief.Generator
	OTP      OTPVerifier
	logger   logging.Logger
	now      func() time.Time
}

// New builds a Gateway. otpVerifier may be nil, in which case step-up
// verification for preset deletion is skipped unconditionally.
func New(st *store.Store, tiers tierpolicy.Matrix, analyzer *scanner.Analyzer, sc *scanner.Scanner, source quote.Source, b *brief.Generator, otpVerifier OTPVerifier, logger logging.Logger) *Gateway {
	return &Gateway{
		Store: st, Tiers: tiers, Analyzer: analyzer, Scanner: sc, Source: source, Brief: b,
		OTP: otpVerifier, logger: logger, now: time.Now,
	}
}

// dispatchFunc is one tool's handler: decode params, run the pipeline,
// return a JSON-marshalable result plus the symbol a public-cache upsert
// should be keyed to (empty for universe/portfolio-scoped tools).
type dispatchFunc func(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, rawParams json.RawMessage) (result interface{}, symbol string, err error)

var dispatchTable = map[tierpolicy.Tool]dispatchFunc{
	tierpolicy.ToolAnalyzeSecurity:     dispatchAnalyzeSecurity,
	tierpolicy.ToolAnalyzeFibonacci:    dispatchAnalyzeFibonacci,
	tierpolicy.ToolGetTradePlan:        dispatchGetTradePlan,
	tierpolicy.ToolCompareSecurities:   dispatchCompareSecurities,
	tierpolicy.ToolScreenSecurities:    dispatchScreenSecurities,
	tierpolicy.ToolScanTrades:          dispatchScanTrades,
	tierpolicy.ToolPortfolioRisk:       dispatchPortfolioRisk,
	tierpolicy.ToolMorningBrief:        dispatchMorningBrief,
	tierpolicy.ToolOptionsRiskAnalysis: dispatchOptionsRiskAnalysis,
}

// Execute runs the full ExecutionGateway state machine for one request.
func (gw *Gateway) Execute(ctx context.Context, ident Identity, tool tierpolicy.Tool, rawParams json.RawMessage) (ExecuteResponse, error) {
	handler, ok := dispatchTable[tool]
	if !ok {
		return ExecuteResponse{}, fmt.Errorf("gateway: unknown tool %q: %w", tool, apperr.ErrValidation)
	}

	// Authorized(tier,tool)
	rule, err := gw.Tiers.Authorize(ident.Tier, tool)
	if err != nil {
		metrics.RecordTierDenial(string(tool), string(ident.Tier))
		return ExecuteResponse{}, err
	}

	// QuotaChecked
	now := gw.now()
	used, err := gw.Store.QuotaCount(ident.UserID, string(tool), now)
	if err != nil {
		return ExecuteResponse{}, fmt.Errorf("gateway: quota check: %w", err)
	}
	if rule.MonthlyQuota != tierpolicy.Unlimited && used >= rule.MonthlyQuota {
		metrics.RecordQuotaRejection(string(tool), string(ident.Tier))
		return ExecuteResponse{}, fmt.Errorf("gateway: quota exceeded for %s: %w", tool, apperr.ErrQuotaExceeded)
	}

	// RunCreated(status=running)
	runID, err := gw.Store.CreateRunning(ident.UserID, string(tool), string(rawParams))
	if err != nil {
		return ExecuteResponse{}, fmt.Errorf("gateway: create run: %w", err)
	}

	// Executed
	start := time.Now()
	result, symbol, execErr := handler(ctx, gw, ident, rule, rawParams)
	executionMS := time.Since(start).Milliseconds()

	// Persisted(status∈{success,error})
	status := store.RunSuccess
	resultJSON := ""
	errMessage := ""
	if execErr != nil {
		status = store.RunError
		if errors.Is(ctx.Err(), context.Canceled) {
			errMessage = "cancelled"
		} else {
			errMessage = execErr.Error()
		}
	} else {
		shaped := shapeResult(tool, ident.Tier, result)
		envelope := map[string]interface{}{"schema_version": schemaVersion, "data": shaped}
		b, marshalErr := json.Marshal(envelope)
		if marshalErr != nil {
			status = store.RunError
			errMessage = marshalErr.Error()
		} else {
			resultJSON = string(b)
		}
	}

	if completeErr := gw.Store.CompleteRun(runID, status, executionMS, resultJSON, errMessage); completeErr != nil {
		gw.logger.Errorf("gateway: complete run %s: %v", runID, completeErr)
	}
	metrics.RecordRun(string(tool), string(status), time.Since(start).Seconds())

	if status == store.RunError {
		if execErr == nil {
			execErr = errors.New(errMessage)
		}
		return ExecuteResponse{}, execErr
	}

	// Public cache: refresh when the last write for (tool, symbol) is
	// stale.
	gw.maybeRefreshPublicCache(string(tool), symbol, resultJSON)

	// successful executes increment the quota counter; see
	// DESIGN.md for why this engine counts on success rather than on
	// dispatch.
	count, err := gw.Store.IncrementQuota(ident.UserID, string(tool), now)
	if err != nil {
		gw.logger.Errorf("gateway: increment quota for run %s: %v", runID, err)
		count = used + 1
	}

	// Filtered -> Responded
	return ExecuteResponse{
		RunID:       runID,
		Result:      json.RawMessage(resultJSON),
		ExecutionMS: executionMS,
		Usage:       Usage{Count: count, Limit: rule.MonthlyQuota},
	}, nil
}

func (gw *Gateway) maybeRefreshPublicCache(tool, symbol, resultJSON string) {
	existing, err := gw.Store.GetPublicLatestRun(tool, symbol)
	if err == nil && gw.now().Sub(existing.UpdatedAt) < publicCacheTTL {
		return
	}
	if upsertErr := gw.Store.UpsertPublicLatestRun(tool, symbol, resultJSON); upsertErr != nil {
		gw.logger.Warnf("gateway: public cache upsert failed for %s/%s: %v", tool, symbol, upsertErr)
	}
}

func decodeParams(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("gateway: decode params: %w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// sectorOf adapts universe.SectorOf to portfolio.SectorLookup.
func sectorOf(symbol string) string { return universe.SectorOf(symbol) }
