package bar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mkBar(t time.Time, c float64) Bar {
	return Bar{Timestamp: t, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
}

func TestNewSortsShuffledBars(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []Bar{
		mkBar(base.Add(2*time.Hour), 12),
		mkBar(base, 10),
		mkBar(base.Add(time.Hour), 11),
	}
	s, err := New("AAPL", "1h", in)
	require.NoError(t, err)
	require.Equal(t, []float64{10, 11, 12}, s.Closes())
}

func TestValidateRejectsInvertedHighLow(t *testing.T) {
	b := Bar{Timestamp: time.Now(), Open: 10, High: 9, Low: 8, Close: 10, Volume: 1}
	require.Error(t, b.Validate())
}

func TestNewRejectsDuplicateTimestamps(t *testing.T) {
	ts := time.Now()
	_, err := New("AAPL", "1d", []Bar{mkBar(ts, 10), mkBar(ts, 11)})
	require.Error(t, err)
}

func TestHasFullAnalysisWindow(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []Bar
	for i := 0; i < 49; i++ {
		bars = append(bars, mkBar(base.Add(time.Duration(i)*time.Hour), float64(100+i)))
	}
	s, err := New("AAPL", "1h", bars)
	require.NoError(t, err)
	require.False(t, s.HasFullAnalysisWindow())

	bars = append(bars, mkBar(base.Add(49*time.Hour), 149))
	s, err = New("AAPL", "1h", bars)
	require.NoError(t, err)
	require.True(t, s.HasFullAnalysisWindow())
}
