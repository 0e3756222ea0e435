package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sentinel/internal/logging"
	"sentinel/internal/signal"
)

type stubScorer struct {
	result LLMResult
	err    error
}

func (s stubScorer) ScoreSignals(ctx context.Context, signals []signal.Signal, market MarketContext) (LLMResult, error) {
	return s.result, s.err
}

func (s stubScorer) Explain(ctx context.Context, signals []signal.Signal, market MarketContext) (string, error) {
	return "", nil
}

func TestDeterministicScoreCapsAtMax(t *testing.T) {
	sig := signal.Signal{Strength: signal.StrengthExtremeBullish, Category: signal.CategoryMACross}
	require.Equal(t, 95, DeterministicScore(sig))
}

func TestRankFallsBackOnLLMError(t *testing.T) {
	r := NewRanker(stubScorer{err: errors.New("boom")}, logging.NewConsole("test"))
	signals := []signal.Signal{
		{Name: "a", Strength: signal.StrengthBullish, Category: signal.CategoryRSI},
	}
	out := r.Rank(context.Background(), signals, true, MarketContext{})
	require.Len(t, out, 1)
	require.Equal(t, 55, out[0].Score)
}

func TestRankAppliesLLMOverride(t *testing.T) {
	r := NewRanker(stubScorer{result: LLMResult{Scores: map[string]int{"a": 90}}}, logging.NewConsole("test"))
	signals := []signal.Signal{
		{Name: "a", Strength: signal.StrengthBullish, Category: signal.CategoryRSI},
	}
	out := r.Rank(context.Background(), signals, true, MarketContext{})
	require.Equal(t, 90, out[0].Score)
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	r := NewRanker(nil, logging.NewConsole("test"))
	signals := []signal.Signal{
		{Name: "low", Strength: signal.StrengthBullish, Category: signal.CategoryRSI},
		{Name: "high", Strength: signal.StrengthExtremeBullish, Category: signal.CategoryMACross},
	}
	out := r.Rank(context.Background(), signals, false, MarketContext{})
	require.Equal(t, "high", out[0].Name)
	require.Equal(t, 1, out[0].Rank)
}
