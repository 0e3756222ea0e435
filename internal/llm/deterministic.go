package llm

import (
	"context"

	"sentinel/internal/rank"
	"sentinel/internal/signal"
)

const ProviderDeterministic = "deterministic"

// DeterministicClient never makes an HTTP call; it satisfies rank.LLMScorer
// by returning the deterministic scores verbatim — useful as a
// configuration default when no LLM API key is present, and in tests
// where a network call must never happen.
type DeterministicClient struct{}

// NewDeterministicClient returns a scorer that always falls through to the
// deterministic baseline.
func NewDeterministicClient() *DeterministicClient { return &DeterministicClient{} }

func (c *DeterministicClient) ScoreSignals(ctx context.Context, signals []signal.Signal, market rank.MarketContext) (rank.LLMResult, error) {
	scores := make(map[string]int, len(signals))
	for _, sig := range signals {
		scores[sig.Name] = rank.DeterministicScore(sig)
	}
	outlook := rank.OutlookNeutral
	bull, bear := 0, 0
	for _, sig := range signals {
		if sig.Strength.IsBullish() {
			bull++
		} else if sig.Strength.IsBearish() {
			bear++
		}
	}
	action := rank.ActionHold
	if bull-bear >= 2 {
		outlook = rank.OutlookBullish
		action = rank.ActionBuy
	} else if bear-bull >= 2 {
		outlook = rank.OutlookBearish
		action = rank.ActionSell
	}
	return rank.LLMResult{Scores: scores, Outlook: outlook, Action: action, Confidence: 0.5}, nil
}

func (c *DeterministicClient) Explain(ctx context.Context, signals []signal.Signal, market rank.MarketContext) (string, error) {
	return "deterministic overlay: no AI provider configured", nil
}
