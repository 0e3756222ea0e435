// Package rank implements the deterministic signal scorer plus the
// optional LLMScorer overlay: an interface any adapter can satisfy, with
// the deterministic baseline always computed first and never mutated by a
// successful or failed AI call. LLM scoring is strictly additive.
package rank

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/indicator"
	"sentinel/internal/logging"
	"sentinel/internal/metrics"
	"sentinel/internal/signal"
)

// Outlook is the LLM's overall market read.
type Outlook string

const (
	OutlookBullish Outlook = "BULLISH"
	OutlookNeutral Outlook = "NEUTRAL"
	OutlookBearish Outlook = "BEARISH"
)

// Action is the LLM's recommended action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
	ActionSell Action = "SELL"
)

// MarketContext is the compact indicator snapshot handed to an LLMScorer:
// a serialization of signals plus the current indicator snapshot, small
// enough to embed directly in a prompt.
type MarketContext struct {
	Symbol      string
	LastPrice   float64
	RSI14       float64
	ADX         float64
	ATRPercent  float64
	VolumeRatio float64
}

// MarketContextFrom builds a MarketContext from an indicator snapshot.
func MarketContextFrom(symbol string, lastPrice, lastVolume float64, snap *indicator.Snapshot) MarketContext {
	return MarketContext{
		Symbol:      symbol,
		LastPrice:   lastPrice,
		RSI14:       snap.RSI14.Last(),
		ADX:         snap.ADX.ADX.Last(),
		ATRPercent:  snap.ATRPercent(lastPrice),
		VolumeRatio: snap.VolumeRatio(lastVolume),
	}
}

// LLMResult is what a successful ScoreSignals call returns.
type LLMResult struct {
	Scores     map[string]int // keyed by signal Name
	Outlook    Outlook
	Action     Action
	Confidence float64
}

// LLMScorer is the two-pure-method capability interface adapters in
// internal/llm satisfy; this package only depends on the interface so the
// deterministic path never imports a vendor SDK.
type LLMScorer interface {
	ScoreSignals(ctx context.Context, signals []signal.Signal, market MarketContext) (LLMResult, error)
	Explain(ctx context.Context, signals []signal.Signal, market MarketContext) (string, error)
}

// CallTimeout is the default LLM call budget; on expiry the deterministic
// score is used.
const CallTimeout = 20 * time.Second

// baseScore is the deterministic score table. NEUTRAL carries no directional
// conviction and is scored at the floor rather than surfaced as a ranked
// trade signal by callers that filter on rank.
var baseScore = map[signal.Strength]int{
	signal.StrengthExtremeBullish: 85,
	signal.StrengthExtremeBearish: 85,
	signal.StrengthStrongBullish:  75,
	signal.StrengthStrongBearish:  75,
	signal.StrengthBullish:        55,
	signal.StrengthBearish:        55,
	signal.StrengthNeutral:        40,
}

// bonusCategories receive the +10 category bonus.
var bonusCategories = map[signal.Category]bool{
	signal.CategoryMACross:       true,
	signal.CategoryMACD:          true,
	signal.CategoryVolume:        true,
	signal.CategoryFibConfluence: true,
}

const maxScore = 95

// DeterministicScore computes the base-plus-bonus score for one signal,
// capped at maxScore.
func DeterministicScore(sig signal.Signal) int {
	score := baseScore[sig.Strength]
	if bonusCategories[sig.Category] {
		score += 10
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

// Ranker produces the ranked signal list, optionally consulting an
// LLMScorer overlay.
type Ranker struct {
	llm    LLMScorer
	logger logging.Logger
}

// NewRanker builds a Ranker. llm may be nil, in which case useAI requests
// silently fall back to the deterministic path.
func NewRanker(llm LLMScorer, logger logging.Logger) *Ranker {
	return &Ranker{llm: llm, logger: logger}
}

// Rank scores and orders signals. When useAI is true and an LLMScorer is
// configured, the AI call may override individual scores; any error or
// timeout leaves the deterministic scores untouched.
func (r *Ranker) Rank(ctx context.Context, signals []signal.Signal, useAI bool, market MarketContext) []signal.RankedSignal {
	scores := make([]int, len(signals))
	for i, sig := range signals {
		scores[i] = DeterministicScore(sig)
	}

	if useAI && r.llm != nil {
		callStart := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
		result, err := r.llm.ScoreSignals(callCtx, signals, market)
		cancel()
		metrics.RecordLLMCall(fmt.Sprintf("%T", r.llm), time.Since(callStart).Seconds(), err != nil)
		if err != nil {
			r.logger.Warnf("llm score_signals failed, using deterministic baseline: %v", err)
		} else {
			for i, sig := range signals {
				if s, ok := result.Scores[sig.Name]; ok && s >= 0 && s <= maxScore {
					scores[i] = s
				}
			}
		}
	}

	ranked := make([]signal.RankedSignal, len(signals))
	for i, sig := range signals {
		ranked[i] = signal.RankedSignal{Signal: sig, Score: scores[i]}
	}

	sortByScoreThenCategory(ranked)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Explain asks the configured LLMScorer for a prose explanation of the
// ranked signals. Returns ("", nil) when no LLMScorer is configured, so
// callers can treat AI explanation as a best-effort addition rather than
// a hard dependency.
func (r *Ranker) Explain(ctx context.Context, signals []signal.Signal, market MarketContext) (string, error) {
	if r.llm == nil {
		return "", nil
	}
	callStart := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	text, err := r.llm.Explain(callCtx, signals, market)
	metrics.RecordLLMCall(fmt.Sprintf("%T", r.llm), time.Since(callStart).Seconds(), err != nil)
	if err != nil {
		r.logger.Warnf("llm explain failed: %v", err)
		return "", err
	}
	return text, nil
}

func sortByScoreThenCategory(ranked []signal.RankedSignal) {
	for i := 1; i < len(ranked); i++ {
		j := i
		for j > 0 && less(ranked[j], ranked[j-1]) {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
			j--
		}
	}
}

func less(a, b signal.RankedSignal) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return categoryRank(a.Category) < categoryRank(b.Category)
}

var categoryOrder = []signal.Category{
	signal.CategoryMACross, signal.CategoryMACD, signal.CategoryFibConfluence,
	signal.CategoryVolume, signal.CategoryMATrend, signal.CategoryTrend,
	signal.CategoryRSI, signal.CategoryBollinger, signal.CategoryStochastic,
	signal.CategoryFibPrice, signal.CategoryFibTime,
}

func categoryRank(c signal.Category) int {
	for i, cat := range categoryOrder {
		if cat == c {
			return i
		}
	}
	return len(categoryOrder)
}
