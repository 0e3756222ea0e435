package scanner

import (
	"context"
	"fmt"
	"strings"

	"sentinel/internal/apperr"
	"sentinel/internal/bar"
	"sentinel/internal/fibonacci"
	"sentinel/internal/indicator"
	"sentinel/internal/logging"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/risk"
	"sentinel/internal/signal"
)

// Analyzer runs the full per-symbol pipeline shared by Scan, Screen, and
// the gateway's single-symbol tools (analyze_security, get_trade_plan).
// Holding the IndicatorEngine here lets its memoized cache survive across
// repeated calls for the same symbol within one process lifetime.
type Analyzer struct {
	source quote.Source
	engine *indicator.Engine
	ranker *rank.Ranker
	rules  []signal.Rule
	logger logging.Logger
}

// NewAnalyzer builds an Analyzer. source should already be wrapped with
// caching/retry decorators by the caller (cmd/sentinel wiring).
func NewAnalyzer(source quote.Source, ranker *rank.Ranker, logger logging.Logger) *Analyzer {
	return &Analyzer{
		source: source,
		engine: indicator.NewEngine(),
		ranker: ranker,
		rules:  signal.DefaultRules(),
		logger: logger,
	}
}

// AnalyzeSymbol runs QuoteSource fetch → IndicatorEngine → SignalDetector →
// FibonacciEngine → SignalRanker → RiskAssessor for one symbol, in that
// strict order: each stage depends on the previous stage's output.
func (a *Analyzer) AnalyzeSymbol(ctx context.Context, symbol string, period quote.Period, useAI bool) (Result, error) {
	series, err := a.source.Fetch(ctx, symbol, period)
	if err != nil {
		return Result{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	if !series.HasFullAnalysisWindow() {
		return Result{}, fmt.Errorf("analyze %s: series has %d bars, need %d: %w",
			symbol, series.Len(), bar.MinSeriesLength, apperr.ErrInsufficientData)
	}

	snap := a.engine.Analyze(series)
	sigs := signal.Detect(series, snap, a.rules)
	fib := fibonacci.Analyze(series, snap)
	sigs = append(sigs, fib.Signals...)

	market := rank.MarketContextFrom(symbol, series.LastClose(), series.Last().Volume, snap)
	ranked := a.ranker.Rank(ctx, sigs, useAI, market)

	assessment, err := risk.Assess(series, snap, sigs)
	if err != nil {
		return Result{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	plan := risk.BuildPlan(assessment, ranked)

	return Result{
		Symbol:        symbol,
		LastClose:     series.LastClose(),
		LastVolume:    series.Last().Volume,
		ChangePercent: changePercent(series),
		Snapshot:      snap,
		Signals:       ranked,
		Fibonacci:     fib,
		Plan:          plan,
		AvgScore:      averageScore(ranked),
	}, nil
}

// Explain asks the analyzer's LLMScorer (if any) for a prose explanation
// of an already-ranked signal set. Used by the gateway's analyze_security
// tool when use_ai is requested; a nil/failed LLMScorer yields ("", nil)
// so a caller can fall back to omitting the field.
func (a *Analyzer) Explain(ctx context.Context, ranked []signal.RankedSignal, market rank.MarketContext) (string, error) {
	sigs := make([]signal.Signal, len(ranked))
	for i, r := range ranked {
		sigs[i] = r.Signal
	}
	return a.ranker.Explain(ctx, sigs, market)
}

// changePercent is the last bar's close-over-close change, used by the
// screener's change_percent criteria key.
func changePercent(s bar.Series) float64 {
	if s.Len() < 2 {
		return 0
	}
	prev := s.Bars[len(s.Bars)-2].Close
	if prev == 0 {
		return 0
	}
	return (s.LastClose() - prev) / prev * 100
}

func signalNameContains(sigs []signal.RankedSignal, needle string) bool {
	if needle == "" {
		return true
	}
	needle = strings.ToLower(needle)
	for _, s := range sigs {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			return true
		}
	}
	return false
}
