package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
)

func TestSMABasic(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := SMA(values, 3)
	require.True(t, IsUndefined(sma[0]))
	require.True(t, IsUndefined(sma[1]))
	require.InDelta(t, 2.0, sma[2], 1e-9)
	require.InDelta(t, 3.0, sma[3], 1e-9)
	require.InDelta(t, 4.0, sma[4], 1e-9)
}

func TestEMASeedsWithSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	ema := EMA(values, 3)
	require.InDelta(t, 2.0, ema[2], 1e-9)
	require.False(t, IsUndefined(ema[5]))
}

func TestRSIBounded(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi := RSI(closes, 14)
	last := rsi.Last()
	require.False(t, IsUndefined(last))
	require.GreaterOrEqual(t, last, 0.0)
	require.LessOrEqual(t, last, 100.0)
	require.Greater(t, last, 90.0) // monotonically rising closes => near-100 RSI
}

func TestDeterminismAcrossShuffledInput(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	for i := 0; i < 60; i++ {
		c := 100 + math.Sin(float64(i)/3.0)*5
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
	}
	shuffled := make([]bar.Bar, len(bars))
	copy(shuffled, bars)
	shuffled[0], shuffled[len(shuffled)-1] = shuffled[len(shuffled)-1], shuffled[0]

	s1, err := bar.New("AAPL", "1h", bars)
	require.NoError(t, err)
	s2, err := bar.New("AAPL", "1h", shuffled)
	require.NoError(t, err)

	e := NewEngine()
	snap1 := compute(s1)
	snap2 := compute(s2)
	require.InDelta(t, snap1.RSI14.Last(), snap2.RSI14.Last(), 1e-9)
	_ = e
}

func TestATRPercentAndVolumeRatio(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []bar.Bar
	for i := 0; i < 40; i++ {
		c := 100.0 + float64(i)*0.1
		bars = append(bars, bar.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000})
	}
	s, err := bar.New("AAPL", "1h", bars)
	require.NoError(t, err)
	e := NewEngine()
	snap := e.Analyze(s)
	pct := snap.ATRPercent(s.LastClose())
	require.False(t, IsUndefined(pct))
	require.Greater(t, pct, 0.0)

	ratio := snap.VolumeRatio(s.Last().Volume)
	require.InDelta(t, 1.0, ratio, 1e-9)
}
