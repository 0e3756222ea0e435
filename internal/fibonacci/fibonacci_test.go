package fibonacci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/indicator"
)

func buildUpSwing(t *testing.T) bar.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	for i := 0; i < 60; i++ {
		c := 100.0
		switch {
		case i < 10:
			c = 100.0
		case i < 30:
			c = 100.0 + float64(i-10)*2 // rallies to 138 by i=29; i=30 closes at the 140 high
		default:
			c = 140.0 - float64(i-30)*0.618*2 // retraces back down
		}
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
	}
	s, err := bar.New("AAPL", "1h", bars)
	require.NoError(t, err)
	return s
}

func TestDetectSwingUpTrend(t *testing.T) {
	s := buildUpSwing(t)
	sw, ok := detectSwing(s, 50)
	require.True(t, ok)
	require.Equal(t, TrendUp, sw.Trend)
	require.Greater(t, sw.High, sw.Low)
}

func TestAdaptiveToleranceClamped(t *testing.T) {
	require.InDelta(t, 0.005, adaptiveTolerance(0.01, 100), 1e-9)
	require.InDelta(t, 0.02, adaptiveTolerance(100, 100), 1e-9)
}

func TestAnalyzeProducesLevels(t *testing.T) {
	s := buildUpSwing(t)
	e := indicator.NewEngine()
	snap := e.Analyze(s)
	out := Analyze(s, snap)
	require.NotEmpty(t, out.Swings)
	require.NotEmpty(t, out.Levels)
}
