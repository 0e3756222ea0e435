package brief

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/llm"
	"sentinel/internal/logging"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/scanner"
)

func seedRisingSeries(t *testing.T, fixture *quote.FixtureSource, symbol string, period quote.Period, start, step float64, n int) bar.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]bar.Bar, 0, n)
	price := start
	for i := 0; i < n; i++ {
		price += step
		bars = append(bars, bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 3_000_000,
		})
	}
	s, err := bar.New(symbol, string(period), bars)
	require.NoError(t, err)
	fixture.Seed(symbol, period, s)
	return s
}

func newTestGenerator(t *testing.T) (*Generator, *quote.FixtureSource) {
	t.Helper()
	fixture := quote.NewFixtureSource()
	logger := logging.NewConsole("brief_test")
	ranker := rank.NewRanker(llm.NewDeterministicClient(), logger)
	analyzer := scanner.NewAnalyzer(fixture, ranker, logger)
	return NewGenerator(fixture, analyzer, logger), fixture
}

func TestGenerateNeverFailsOnMissingSymbols(t *testing.T) {
	gen, _ := newTestGenerator(t)
	b := gen.Generate(context.Background(), []string{"AAPL"}, "US", quote.Period1d)
	assert.Empty(t, b.Indices, "no index fixtures were seeded, Generate must elide them rather than error")
	assert.Empty(t, b.Watchlist)
	assert.Equal(t, "US", b.MarketRegion)
}

func TestGenerateDefaultsMarketRegionAndWatchlist(t *testing.T) {
	gen, fixture := newTestGenerator(t)
	seedRisingSeries(t, fixture, "AAPL", quote.Period1d, 150, 0.2, 80)

	b := gen.Generate(context.Background(), nil, "", quote.Period1d)
	assert.Equal(t, "US", b.MarketRegion)
	require.Len(t, b.Watchlist, 1, "only AAPL of the default sp500 watchlist was seeded")
	assert.Equal(t, "AAPL", b.Watchlist[0].Symbol)
}

func TestClassifySentimentBands(t *testing.T) {
	assert.Equal(t, SentimentBullish, classifySentiment(0.8, 10))
	assert.Equal(t, SentimentBearish, classifySentiment(-0.8, 25))
	assert.Equal(t, SentimentNeutral, classifySentiment(0.1, 18))
}

func TestDeriveThemesRiskBands(t *testing.T) {
	themes := deriveThemes(nil, nil, 10)
	assert.Contains(t, themes, ThemeRiskOn)

	themes = deriveThemes(nil, nil, 25)
	assert.Contains(t, themes, ThemeRiskOff)
}
