// Package indicator computes the fixed technical-indicator set over a
// bar.Series: SMA/EMA at several windows, RSI, MACD, Bollinger bands,
// Stochastic, ADX, ATR and OBV. Every function here is pure and
// deterministic, matching the bit-equal-within-tolerance invariant signals
// depend on; indicators are produced once per analysis and shared across
// rule evaluation, precomputing one column per field rather than
// recomputing it per rule.
package indicator

import "math"

// NaN is the sentinel for "window exceeds available bars"; downstream rules
// must check IsUndefined before consuming a value.
var NaN = math.NaN()

// IsUndefined reports whether v is the NaN sentinel.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// Column is a value aligned 1:1 with the source Series, leading entries NaN
// until enough bars accumulate for the window.
type Column []float64

// Last returns the final element, or NaN for an empty column.
func (c Column) Last() float64 {
	if len(c) == 0 {
		return NaN
	}
	return c[len(c)-1]
}

// Prev returns the second-to-last element, used by cross-detection rules
// that compare the last two bars.
func (c Column) Prev() float64 {
	if len(c) < 2 {
		return NaN
	}
	return c[len(c)-2]
}

// SMA computes the simple moving average over window n.
func SMA(values []float64, n int) Column {
	out := make(Column, len(values))
	if n <= 0 {
		for i := range out {
			out[i] = NaN
		}
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i < n-1 {
			out[i] = NaN
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA computes the exponential moving average with smoothing factor
// k = 2/(n+1), seeded by the SMA of the first n values.
func EMA(values []float64, n int) Column {
	out := make(Column, len(values))
	if n <= 0 || len(values) < n {
		for i := range out {
			out[i] = NaN
		}
		return out
	}
	k := 2.0 / (float64(n) + 1.0)
	var seed float64
	for i := 0; i < n; i++ {
		seed += values[i]
		out[i] = NaN
	}
	seed /= float64(n)
	out[n-1] = seed
	prev := seed
	for i := n; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// stdev computes the population standard deviation over the trailing window
// ending at index i (inclusive), given a precomputed SMA column.
func stdev(values []float64, sma Column, n, i int) float64 {
	if i < n-1 {
		return NaN
	}
	mean := sma[i]
	var sumSq float64
	for j := i - n + 1; j <= i; j++ {
		d := values[j] - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

// rsiEpsilon guards the average-loss denominator against division by zero.
const rsiEpsilon = 1e-10

// RSI computes Wilder-smoothed RSI over window n (14 per the fixed set).
func RSI(closes []float64, n int) Column {
	out := make(Column, len(closes))
	for i := range out {
		out[i] = NaN
	}
	if len(closes) <= n {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiFromAverages(avgGain, avgLoss)

	for i := n + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	rs := avgGain / (avgLoss + rsiEpsilon)
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACDResult bundles the three MACD columns: the MACD line, its signal
// line, and the histogram.
type MACDResult struct {
	MACD      Column
	Signal    Column
	Histogram Column
}

// MACD computes MACD(fast, slow, signal) — fixed at (12,26,9) in the engine.
func MACD(closes []float64, fast, slow, signalN int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd := make(Column, len(closes))
	for i := range closes {
		if IsUndefined(emaFast[i]) || IsUndefined(emaSlow[i]) {
			macd[i] = NaN
		} else {
			macd[i] = emaFast[i] - emaSlow[i]
		}
	}
	signal := EMA(firstDefined(macd), signalN)
	// EMA computed on the trimmed, defined-only slice; re-align back onto
	// the full-length column.
	aligned := make(Column, len(closes))
	offset := len(closes) - len(signal)
	for i := range aligned {
		if i < offset {
			aligned[i] = NaN
		} else {
			aligned[i] = signal[i-offset]
		}
	}
	hist := make(Column, len(closes))
	for i := range closes {
		if IsUndefined(macd[i]) || IsUndefined(aligned[i]) {
			hist[i] = NaN
		} else {
			hist[i] = macd[i] - aligned[i]
		}
	}
	return MACDResult{MACD: macd, Signal: aligned, Histogram: hist}
}

func firstDefined(c Column) []float64 {
	for i, v := range c {
		if !IsUndefined(v) {
			return c[i:]
		}
	}
	return nil
}

// BollingerResult bundles the upper/middle/lower bands.
type BollingerResult struct {
	Upper  Column
	Middle Column
	Lower  Column
}

// Bollinger computes SMA(n) ± mult*stdev(n).
func Bollinger(closes []float64, n int, mult float64) BollingerResult {
	mid := SMA(closes, n)
	upper := make(Column, len(closes))
	lower := make(Column, len(closes))
	for i := range closes {
		sd := stdev(closes, mid, n, i)
		if IsUndefined(sd) {
			upper[i] = NaN
			lower[i] = NaN
			continue
		}
		upper[i] = mid[i] + mult*sd
		lower[i] = mid[i] - mult*sd
	}
	return BollingerResult{Upper: upper, Middle: mid, Lower: lower}
}

// StochasticResult bundles %K and %D.
type StochasticResult struct {
	K Column
	D Column
}

// Stochastic computes %K over window n and %D as an SMA(m) of %K.
func Stochastic(highs, lows, closes []float64, n, m int) StochasticResult {
	k := make(Column, len(closes))
	for i := range closes {
		if i < n-1 {
			k[i] = NaN
			continue
		}
		hi, lo := highs[i], lows[i]
		for j := i - n + 1; j <= i; j++ {
			if highs[j] > hi {
				hi = highs[j]
			}
			if lows[j] < lo {
				lo = lows[j]
			}
		}
		denom := hi - lo
		if denom == 0 {
			k[i] = 50
			continue
		}
		k[i] = 100 * (closes[i] - lo) / denom
	}
	d := SMA(firstDefined(k), m)
	aligned := make(Column, len(closes))
	offset := len(closes) - len(d)
	for i := range aligned {
		if i < offset {
			aligned[i] = NaN
		} else {
			aligned[i] = d[i-offset]
		}
	}
	return StochasticResult{K: k, D: aligned}
}

// TrueRange computes the true range series: max(high-low, |high-prevClose|,
// |low-prevClose|), undefined for the first bar.
func TrueRange(highs, lows, closes []float64) Column {
	out := make(Column, len(closes))
	out[0] = NaN
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR computes the average true range over window n as an SMA of true
// range.
func ATR(highs, lows, closes []float64, n int) Column {
	tr := TrueRange(highs, lows, closes)
	defined := firstDefined(tr)
	sma := SMA(defined, n)
	out := make(Column, len(closes))
	offset := len(closes) - len(sma)
	for i := range out {
		if i < offset {
			out[i] = NaN
		} else {
			out[i] = sma[i-offset]
		}
	}
	return out
}

// ADXResult bundles +DI, -DI and ADX.
type ADXResult struct {
	PlusDI  Column
	MinusDI Column
	ADX     Column
}

// ADX computes Wilder's average directional index over window n: true
// range and directional movement, smoothed, converted to DI, then DX
// smoothed again into ADX.
func ADX(highs, lows, closes []float64, n int) ADXResult {
	size := len(closes)
	plusDM := make([]float64, size)
	minusDM := make([]float64, size)
	tr := make([]float64, size)
	for i := 1; i < size; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	plusDI := make(Column, size)
	minusDI := make(Column, size)
	adx := make(Column, size)
	for i := range adx {
		plusDI[i], minusDI[i], adx[i] = NaN, NaN, NaN
	}
	if size <= 2*n {
		return ADXResult{PlusDI: plusDI, MinusDI: minusDI, ADX: adx}
	}

	var smTR, smPlusDM, smMinusDM float64
	for i := 1; i <= n; i++ {
		smTR += tr[i]
		smPlusDM += plusDM[i]
		smMinusDM += minusDM[i]
	}
	dx := make([]float64, 0, size)
	computeDI := func(tr, pdm, mdm float64) (float64, float64) {
		if tr == 0 {
			return 0, 0
		}
		return 100 * pdm / tr, 100 * mdm / tr
	}
	pdi, mdi := computeDI(smTR, smPlusDM, smMinusDM)
	plusDI[n] = pdi
	minusDI[n] = mdi
	dx = append(dx, dxValue(pdi, mdi))

	for i := n + 1; i < size; i++ {
		smTR = smTR - smTR/float64(n) + tr[i]
		smPlusDM = smPlusDM - smPlusDM/float64(n) + plusDM[i]
		smMinusDM = smMinusDM - smMinusDM/float64(n) + minusDM[i]
		pdi, mdi = computeDI(smTR, smPlusDM, smMinusDM)
		plusDI[i] = pdi
		minusDI[i] = mdi
		dx = append(dx, dxValue(pdi, mdi))
	}

	adxCol := SMA(dx, n)
	offset := size - len(adxCol)
	for i := range adx {
		if i >= offset {
			adx[i] = adxCol[i-offset]
		}
	}
	return ADXResult{PlusDI: plusDI, MinusDI: minusDI, ADX: adx}
}

func dxValue(pdi, mdi float64) float64 {
	sum := pdi + mdi
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / sum
}

// OBV computes cumulative on-balance volume: sign(Δclose)·volume.
func OBV(closes, volumes []float64) Column {
	out := make(Column, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}
