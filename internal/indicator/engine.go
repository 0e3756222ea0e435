package indicator

import (
	"sync"

	"sentinel/internal/bar"
)

// SMAPeriods and EMAPeriods are the fixed set of moving-average windows
// computed for every series.
var (
	SMAPeriods = []int{5, 10, 20, 50, 100, 200}
	EMAPeriods = []int{5, 10, 20, 50, 100, 200}
)

// Snapshot is the full set of indicator columns produced for one Series,
// computed once and shared across every signal rule, mirroring the
// teacher's TimeframeSeriesData column-per-indicator layout.
type Snapshot struct {
	SMA map[int]Column
	EMA map[int]Column

	RSI14 Column
	MACD  MACDResult

	Bollinger  BollingerResult
	Stochastic StochasticResult

	ADX ADXResult
	ATR Column

	OBV      Column
	VolumeMA map[int]Column
}

// Engine computes and memoizes a Snapshot for a Series behind a RWMutex,
// following the mutex-guarded pure-computation accumulator idiom of the
// teacher's VWAPCollector: cheap to call Analyze repeatedly, computed once.
type Engine struct {
	mu       sync.RWMutex
	computed map[string]*Snapshot
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{computed: make(map[string]*Snapshot)}
}

func cacheKey(s bar.Series) string {
	if len(s.Bars) == 0 {
		return s.Symbol + "|" + s.Period + "|0"
	}
	return s.Symbol + "|" + s.Period + "|" + s.Last().Timestamp.String()
}

// Analyze returns the Snapshot for s, computing it once per distinct
// (symbol, period, last-bar) fingerprint.
func (e *Engine) Analyze(s bar.Series) *Snapshot {
	key := cacheKey(s)

	e.mu.RLock()
	if snap, ok := e.computed[key]; ok {
		e.mu.RUnlock()
		return snap
	}
	e.mu.RUnlock()

	snap := compute(s)

	e.mu.Lock()
	e.computed[key] = snap
	e.mu.Unlock()

	return snap
}

func compute(s bar.Series) *Snapshot {
	closes := s.Closes()
	highs := s.Highs()
	lows := s.Lows()
	volumes := s.Volumes()

	snap := &Snapshot{
		SMA:      make(map[int]Column, len(SMAPeriods)),
		EMA:      make(map[int]Column, len(EMAPeriods)),
		VolumeMA: make(map[int]Column, 2),
	}
	for _, n := range SMAPeriods {
		snap.SMA[n] = SMA(closes, n)
	}
	for _, n := range EMAPeriods {
		snap.EMA[n] = EMA(closes, n)
	}

	snap.RSI14 = RSI(closes, 14)
	snap.MACD = MACD(closes, 12, 26, 9)
	snap.Bollinger = Bollinger(closes, 20, 2.0)
	snap.Stochastic = Stochastic(highs, lows, closes, 14, 3)
	snap.ADX = ADX(highs, lows, closes, 14)
	snap.ATR = ATR(highs, lows, closes, 14)
	snap.OBV = OBV(closes, volumes)
	snap.VolumeMA[20] = SMA(volumes, 20)
	snap.VolumeMA[50] = SMA(volumes, 50)

	return snap
}

// ATRPercent returns the last ATR value as a percentage of the last close,
// the figure the risk assessor uses to classify volatility regime.
func (s *Snapshot) ATRPercent(lastClose float64) float64 {
	atr := s.ATR.Last()
	if IsUndefined(atr) || lastClose == 0 {
		return NaN
	}
	return atr / lastClose * 100
}

// VolumeRatio returns the last bar's volume divided by its 20-bar average,
// used both by the volume-spike signal rules and the risk suppression
// predicate.
func (s *Snapshot) VolumeRatio(lastVolume float64) float64 {
	avg := s.VolumeMA[20].Last()
	if IsUndefined(avg) || avg == 0 {
		return NaN
	}
	return lastVolume / avg
}
