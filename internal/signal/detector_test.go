package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/indicator"
)

func buildGoldenCrossSeries(t *testing.T) bar.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	// Depress the tail so SMA50 sits under SMA200, then ramp sharply so the
	// final two bars flip SMA50 above SMA200.
	for i := 0; i < 210; i++ {
		c := 100.0
		if i > 150 {
			c = 100.0 - float64(i-150)*0.05
		}
		if i >= 208 {
			c = 160.0
		}
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * 24 * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
	}
	s, err := bar.New("AAPL", "1d", bars)
	require.NoError(t, err)
	return s
}

func TestGoldenCrossDetected(t *testing.T) {
	s := buildGoldenCrossSeries(t)
	e := indicator.NewEngine()
	snap := e.Analyze(s)
	signals := Detect(s, snap, []Rule{ruleGoldenDeathCross})
	found := false
	for _, sig := range signals {
		if sig.Name == "GOLDEN_CROSS" {
			found = true
			require.Equal(t, CategoryMACross, sig.Category)
			require.Equal(t, StrengthStrongBullish, sig.Strength)
		}
	}
	require.True(t, found, "expected a GOLDEN_CROSS signal, got %+v", signals)
}

func TestRSIBandsExtremeOversold(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	for i := 0; i < 30; i++ {
		c := 100.0 - float64(i)*2
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
	}
	s, err := bar.New("AAPL", "1h", bars)
	require.NoError(t, err)
	e := indicator.NewEngine()
	snap := e.Analyze(s)
	signals := Detect(s, snap, []Rule{ruleRSIBands})
	require.Len(t, signals, 1)
	require.Equal(t, "RSI_EXTREME_OVERSOLD", signals[0].Name)
	require.True(t, signals[0].Strength.IsBullish())
}

func TestDetectTieBreakOrdering(t *testing.T) {
	signals := []Signal{
		{Name: "a", Category: CategoryRSI, Value: 1},
		{Name: "b", Category: CategoryMACross, Value: 0.5},
		{Name: "c", Category: CategoryMACross, Value: 2},
	}
	sorted := Detect(bar.Series{}, &indicator.Snapshot{}, nil)
	require.Empty(t, sorted)

	emitAll := func(bar.Series, *indicator.Snapshot) []Signal { return signals }
	sorted = Detect(bar.Series{}, &indicator.Snapshot{}, []Rule{emitAll})
	require.Len(t, sorted, 3)
	require.Equal(t, []string{"c", "b", "a"}, []string{sorted[0].Name, sorted[1].Name, sorted[2].Name},
		"MA_CROSS sorts before RSI, and within MA_CROSS the larger |value| comes first")
}
