package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/indicator"
	"sentinel/internal/signal"
)

func buildTrendingSeries(t *testing.T) bar.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	for i := 0; i < 220; i++ {
		c := 100.0 + float64(i)*0.5
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * 24 * time.Hour), Open: c, High: c + 1.5, Low: c - 1.5, Close: c, Volume: 1000})
	}
	s, err := bar.New("AAPL", "1d", bars)
	require.NoError(t, err)
	return s
}

func TestRRConsistencyInvariant(t *testing.T) {
	s := buildTrendingSeries(t)
	e := indicator.NewEngine()
	snap := e.Analyze(s)
	signals := []signal.Signal{
		{Name: "a", Strength: signal.StrengthStrongBullish, Category: signal.CategoryMACross},
		{Name: "b", Strength: signal.StrengthBullish, Category: signal.CategoryRSI},
	}
	a, err := Assess(s, snap, signals)
	require.NoError(t, err)
	computedRatio := a.RR.Reward / a.RR.Risk
	require.InDelta(t, computedRatio, a.RR.Ratio, 1e-6)
}

func TestInsufficientDataWhenATRUndefined(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	for i := 0; i < 5; i++ {
		c := 100.0
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100})
	}
	s, err := bar.New("AAPL", "1h", bars)
	require.NoError(t, err)
	e := indicator.NewEngine()
	snap := e.Analyze(s)
	_, err = Assess(s, snap, nil)
	require.Error(t, err)
}

func TestStopPlacementDirectionByBias(t *testing.T) {
	stopBull := placeStop(100, 2.5, TimeframeSwing, BiasBullish)
	require.Less(t, stopBull.Price, 100.0)
	stopBear := placeStop(100, 2.5, TimeframeSwing, BiasBearish)
	require.Greater(t, stopBear.Price, 100.0)
}

func TestQualityScoreThresholds(t *testing.T) {
	require.Equal(t, QualityHigh, scoreQuality(2.5, 40, VolatilityLow))
	require.Equal(t, QualityLow, scoreQuality(1.0, 10, VolatilityHigh))
}
