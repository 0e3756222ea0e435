// Package fibonacci implements a multi-window Fibonacci retracement and
// extension engine: swing detection over several lookback windows,
// adaptive tolerance keyed off ATR, and confluence/golden-pocket
// composite signals emitted as signal.Signal values so the ranker treats
// them identically to indicator-derived signals.
package fibonacci

import (
	"math"

	"sentinel/internal/bar"
	"sentinel/internal/indicator"
	"sentinel/internal/signal"
)

// Windows is the fixed set of swing lookback periods analyzed together.
var Windows = []int{20, 50, 100, 200}

// Trend is the direction of a detected swing.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
)

var retracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
var extensionRatios = []float64{1.272, 1.414, 1.618, 2.0, 2.618}

// goldenPocketLow/High is the [0.618, 0.65] band traders call the
// "golden pocket," the highest-confluence retracement zone.
const goldenPocketLow = 0.618
const goldenPocketHigh = 0.65

// Level is one computed retracement or extension price.
type Level struct {
	Window     int
	Ratio      float64
	Price      float64
	Extension  bool
	Trend      Trend
}

// Swing is the detected high/low pair for one window.
type Swing struct {
	Window int
	High   float64
	Low    float64
	Trend  Trend
}

// Analysis is the full multi-window result for one series.
type Analysis struct {
	Swings    []Swing
	Levels    []Level
	Tolerance float64 // τ as a fraction, e.g. 0.01 for 1%
	Signals   []signal.Signal
}

// Analyze computes swings, levels, and the resulting Fibonacci signals for
// s using snap for the adaptive-tolerance ATR figure.
func Analyze(s bar.Series, snap *indicator.Snapshot) Analysis {
	price := s.LastClose()
	atr := snap.ATR.Last()
	tau := adaptiveTolerance(atr, price)

	var swings []Swing
	var levels []Level
	for _, w := range Windows {
		sw, ok := detectSwing(s, w)
		if !ok {
			continue
		}
		swings = append(swings, sw)
		levels = append(levels, computeLevels(sw)...)
	}

	signals := emitPriceLevelSignals(price, levels, tau)
	signals = append(signals, emitConfluenceSignals(price, levels, tau)...)
	signals = append(signals, emitGoldenPocketSignals(price, swings, tau)...)

	return Analysis{Swings: swings, Levels: levels, Tolerance: tau, Signals: signals}
}

// adaptiveTolerance implements τ = clamp((ATR·0.5)/price · 100, 0.5%, 2.0%),
// returned here as a fraction (0.005..0.02) rather than a percentage.
func adaptiveTolerance(atr, price float64) float64 {
	if indicator.IsUndefined(atr) || price == 0 {
		return 0.01
	}
	pct := (atr * 0.5) / price * 100
	if pct < 0.5 {
		pct = 0.5
	}
	if pct > 2.0 {
		pct = 2.0
	}
	return pct / 100
}

func detectSwing(s bar.Series, window int) (Swing, bool) {
	if s.Len() < window {
		return Swing{}, false
	}
	closes := s.Closes()
	start := s.Len() - window
	hiIdx, loIdx := start, start
	hi, lo := closes[start], closes[start]
	for i := start; i < s.Len(); i++ {
		if closes[i] > hi {
			hi = closes[i]
			hiIdx = i
		}
		if closes[i] < lo {
			lo = closes[i]
			loIdx = i
		}
	}
	trend := TrendDown
	if loIdx < hiIdx {
		trend = TrendUp
	}
	return Swing{Window: window, High: hi, Low: lo, Trend: trend}, true
}

func computeLevels(sw Swing) []Level {
	rng := sw.High - sw.Low
	var out []Level
	for _, r := range retracementRatios {
		out = append(out, Level{Window: sw.Window, Ratio: r, Trend: sw.Trend, Price: retracementPrice(sw, r, rng)})
	}
	for _, r := range extensionRatios {
		out = append(out, Level{Window: sw.Window, Ratio: r, Trend: sw.Trend, Extension: true, Price: extensionPrice(sw, r, rng)})
	}
	return out
}

// retracementPrice: in an UP trend price retraces down from the high
// toward the low; in a DOWN trend it retraces up from the low toward the
// high.
func retracementPrice(sw Swing, ratio, rng float64) float64 {
	if sw.Trend == TrendUp {
		return sw.High - ratio*rng
	}
	return sw.Low + ratio*rng
}

// extensionPrice projects beyond the swing in the direction of the trend.
func extensionPrice(sw Swing, ratio, rng float64) float64 {
	if sw.Trend == TrendUp {
		return sw.Low + ratio*rng
	}
	return sw.High - ratio*rng
}

func withinTolerance(price, level, tau float64) bool {
	if level == 0 {
		return false
	}
	return math.Abs(price-level)/level <= tau
}

func emitPriceLevelSignals(price float64, levels []Level, tau float64) []signal.Signal {
	var out []signal.Signal
	for _, lvl := range levels {
		if !withinTolerance(price, lvl.Price, tau) {
			continue
		}
		strength := signal.StrengthNeutral
		if lvl.Trend == TrendUp {
			strength = signal.StrengthBullish
		} else {
			strength = signal.StrengthBearish
		}
		kind := "retracement"
		if lvl.Extension {
			kind = "extension"
		}
		out = append(out, signal.Signal{
			Name:     "FIB_LEVEL",
			Category: signal.CategoryFibPrice,
			Strength: strength,
			Value:    lvl.Ratio,
			Metadata: map[string]interface{}{
				"window": lvl.Window, "kind": kind, "price": lvl.Price, "trend": string(lvl.Trend),
			},
		})
	}
	return out
}

func emitConfluenceSignals(price float64, levels []Level, tau float64) []signal.Signal {
	var out []signal.Signal
	seen := map[int]bool{}
	for i, a := range levels {
		if seen[i] {
			continue
		}
		cluster := []Level{a}
		for j := i + 1; j < len(levels); j++ {
			b := levels[j]
			if a.Window == b.Window {
				continue
			}
			if withinTolerance(a.Price, b.Price, tau) {
				cluster = append(cluster, b)
				seen[j] = true
			}
		}
		if len(cluster) < 2 {
			continue
		}
		strength := signal.StrengthStrongBullish
		if a.Trend == TrendDown {
			strength = signal.StrengthStrongBearish
		}
		out = append(out, signal.Signal{
			Name:     "FIB_CONFLUENCE",
			Category: signal.CategoryFibConfluence,
			Strength: strength,
			Value:    float64(len(cluster)),
			Metadata: map[string]interface{}{"price": a.Price, "windows": windowList(cluster)},
		})
	}
	return out
}

func windowList(cluster []Level) []int {
	out := make([]int, len(cluster))
	for i, l := range cluster {
		out[i] = l.Window
	}
	return out
}

func emitGoldenPocketSignals(price float64, swings []Swing, tau float64) []signal.Signal {
	var out []signal.Signal
	for _, sw := range swings {
		rng := sw.High - sw.Low
		lowPrice := retracementPrice(sw, goldenPocketLow, rng)
		highPrice := retracementPrice(sw, goldenPocketHigh, rng)
		bandLow, bandHigh := lowPrice, highPrice
		if bandLow > bandHigh {
			bandLow, bandHigh = bandHigh, bandLow
		}
		tolAbs := bandHigh * tau
		if price < bandLow-tolAbs || price > bandHigh+tolAbs {
			continue
		}
		strength := signal.StrengthStrongBullish
		if sw.Trend == TrendDown {
			strength = signal.StrengthStrongBearish
		}
		out = append(out, signal.Signal{
			Name:     "GOLDEN_POCKET",
			Category: signal.CategoryFibConfluence,
			Strength: strength,
			Value:    1.0,
			Metadata: map[string]interface{}{"window": sw.Window, "low": bandLow, "high": bandHigh, "trend": string(sw.Trend)},
		})
	}
	return out
}
