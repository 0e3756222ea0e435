package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/llm"
	"sentinel/internal/logging"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/universe"
)

func seedUniverseSeries(t *testing.T, fixture *quote.FixtureSource, symbols []string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, sym := range symbols {
		bars := make([]bar.Bar, 0, 80)
		price := 100.0
		for i := 0; i < 80; i++ {
			price += 0.3
			bars = append(bars, bar.Bar{
				Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
				Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 2_000_000,
			})
		}
		s, err := bar.New(sym, string(quote.Period3mo), bars)
		require.NoError(t, err)
		fixture.Seed(sym, quote.Period3mo, s)
	}
}

func newTestScanner(t *testing.T) (*Scanner, *quote.FixtureSource) {
	t.Helper()
	fixture := quote.NewFixtureSource()
	logger := logging.NewConsole("scanner_test")
	ranker := rank.NewRanker(llm.NewDeterministicClient(), logger)
	analyzer := NewAnalyzer(fixture, ranker, logger)
	return NewScanner(analyzer), fixture
}

func TestScanBoundedConcurrencyCompletesAllSymbols(t *testing.T) {
	sc, fixture := newTestScanner(t)
	symbols, err := universe.Symbols(universe.Beta1)
	require.NoError(t, err)
	seedUniverseSeries(t, fixture, symbols)

	result, err := sc.Scan(context.Background(), universe.Beta1, 5, quote.Period3mo)
	require.NoError(t, err)
	require.Equal(t, len(symbols), result.ScannedSymbols)
	require.Equal(t, 0, result.FailedSymbols)
}

func TestScanFailedSymbolsAreIsolated(t *testing.T) {
	sc, fixture := newTestScanner(t)
	symbols, err := universe.Symbols(universe.Beta1)
	require.NoError(t, err)
	seedUniverseSeries(t, fixture, symbols)
	// Symbols were seeded for Period3mo only, so a Period1d scan fails every
	// pipeline without aborting the fan-out.
	result, err := sc.Scan(context.Background(), universe.Beta1, 0, quote.Period1d)
	require.NoError(t, err)
	require.Equal(t, len(symbols), result.FailedSymbols, "no 1d series were seeded, every symbol should fail its pipeline without aborting the fan-out")
}

func TestScreenFiltersByMinScore(t *testing.T) {
	sc, fixture := newTestScanner(t)
	symbols, err := universe.Symbols(universe.Beta1)
	require.NoError(t, err)
	seedUniverseSeries(t, fixture, symbols)

	minScore := 999
	result, err := sc.Screen(context.Background(), universe.Beta1, Criteria{MinScore: &minScore}, 20, quote.Period3mo)
	require.NoError(t, err)
	require.Empty(t, result.Matches, "an unreachable min_score should exclude every symbol")
}
