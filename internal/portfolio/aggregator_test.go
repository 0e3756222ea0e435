package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
)

type fakeFetcher struct {
	prices map[string]float64
}

func (f fakeFetcher) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return f.prices[symbol], nil
}

func (f fakeFetcher) Series(ctx context.Context, symbol, period string) (bar.Series, error) {
	return bar.Series{}, nil // triggers the default-stop fallback path
}

func sectorOf(symbol string) string {
	switch symbol {
	case "AAPL", "MSFT", "NVDA":
		return "Technology"
	case "GOOGL":
		return "Communication Services"
	}
	return "Other"
}

func TestSectorConcentrationSumsTo100(t *testing.T) {
	fetcher := fakeFetcher{prices: map[string]float64{"AAPL": 180, "MSFT": 410, "NVDA": 870, "GOOGL": 140}}
	positions := []Position{
		{Symbol: "AAPL", Shares: 100, EntryPrice: 180},
		{Symbol: "MSFT", Shares: 50, EntryPrice: 410},
		{Symbol: "NVDA", Shares: 20, EntryPrice: 870},
		{Symbol: "GOOGL", Shares: 100, EntryPrice: 140},
	}
	a, err := Aggregate(context.Background(), positions, fetcher, sectorOf)
	require.NoError(t, err)
	var sum float64
	for _, v := range a.SectorConcentration {
		sum += v
	}
	require.InDelta(t, 100.0, sum, 1e-6)
	require.Greater(t, a.SectorConcentration["Technology"], 70.0)

	found := false
	for _, h := range a.Hedges {
		if h.Kind == HedgeSectorOverweight && h.Sector == "Technology" {
			require.Equal(t, "XLK", h.ETF)
			found = true
		}
	}
	require.True(t, found)
}

func TestDefaultStopFallbackWhenSeriesUnavailable(t *testing.T) {
	fetcher := fakeFetcher{prices: map[string]float64{"AAPL": 100}}
	positions := []Position{{Symbol: "AAPL", Shares: 10, EntryPrice: 100}}
	a, err := Aggregate(context.Background(), positions, fetcher, sectorOf)
	require.NoError(t, err)
	require.InDelta(t, 95.0, a.Positions[0].Stop, 1e-9)
}
