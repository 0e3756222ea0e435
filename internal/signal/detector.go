package signal

import (
	"math"
	"sort"

	"sentinel/internal/bar"
	"sentinel/internal/indicator"
)

// Rule is one independent detection function: it reads the indicator
// snapshot (and, where needed, the raw series) and emits zero or more
// signals. Rules never look further back than the last two bars.
type Rule func(s bar.Series, snap *indicator.Snapshot) []Signal

// DefaultRules is the standard rule set run on every symbol.
func DefaultRules() []Rule {
	return []Rule{
		ruleGoldenDeathCross,
		ruleMAAlignment,
		ruleRSIBands,
		ruleMACDCrosses,
		ruleBollingerTouch,
		ruleStochasticBands,
		ruleVolumeSpike,
		ruleADXTrend,
	}
}

// categoryPriority orders categories for the tie-break rule: "ties broken
// by category then by |value|". Lower number sorts first.
var categoryPriority = map[Category]int{
	CategoryMACross:       0,
	CategoryMACD:          1,
	CategoryFibConfluence: 2,
	CategoryVolume:        3,
	CategoryMATrend:       4,
	CategoryTrend:         5,
	CategoryRSI:           6,
	CategoryBollinger:     7,
	CategoryStochastic:    8,
	CategoryFibPrice:      9,
	CategoryFibTime:       10,
}

// Detect runs every rule in rules against the series/snapshot pair and
// returns the signals sorted by the category/|value| tie-break.
func Detect(s bar.Series, snap *indicator.Snapshot, rules []Rule) []Signal {
	var out []Signal
	for _, r := range rules {
		out = append(out, r(s, snap)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := categoryPriority[out[i].Category], categoryPriority[out[j].Category]
		if pi != pj {
			return pi < pj
		}
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}

func ruleGoldenDeathCross(s bar.Series, snap *indicator.Snapshot) []Signal {
	sma50, sma200 := snap.SMA[50], snap.SMA[200]
	if indicator.IsUndefined(sma50.Prev()) || indicator.IsUndefined(sma200.Prev()) ||
		indicator.IsUndefined(sma50.Last()) || indicator.IsUndefined(sma200.Last()) {
		return nil
	}
	prevDiff := sma50.Prev() - sma200.Prev()
	lastDiff := sma50.Last() - sma200.Last()

	if prevDiff <= 0 && lastDiff > 0 {
		return []Signal{{
			Name: "GOLDEN_CROSS", Category: CategoryMACross, Strength: StrengthStrongBullish,
			Value: lastDiff, Metadata: map[string]interface{}{"sma50": sma50.Last(), "sma200": sma200.Last()},
		}}
	}
	if prevDiff >= 0 && lastDiff < 0 {
		return []Signal{{
			Name: "DEATH_CROSS", Category: CategoryMACross, Strength: StrengthStrongBearish,
			Value: lastDiff, Metadata: map[string]interface{}{"sma50": sma50.Last(), "sma200": sma200.Last()},
		}}
	}
	return nil
}

func ruleMAAlignment(s bar.Series, snap *indicator.Snapshot) []Signal {
	sma10, sma20, sma50 := snap.SMA[10].Last(), snap.SMA[20].Last(), snap.SMA[50].Last()
	if indicator.IsUndefined(sma10) || indicator.IsUndefined(sma20) || indicator.IsUndefined(sma50) {
		return nil
	}
	switch {
	case sma10 > sma20 && sma20 > sma50:
		return []Signal{{
			Name: "MA_ALIGNMENT_BULLISH", Category: CategoryMATrend, Strength: StrengthStrongBullish,
			Value: sma10 - sma50, Metadata: map[string]interface{}{"sma10": sma10, "sma20": sma20, "sma50": sma50},
		}}
	case sma10 < sma20 && sma20 < sma50:
		return []Signal{{
			Name: "MA_ALIGNMENT_BEARISH", Category: CategoryMATrend, Strength: StrengthStrongBearish,
			Value: sma50 - sma10, Metadata: map[string]interface{}{"sma10": sma10, "sma20": sma20, "sma50": sma50},
		}}
	}
	return nil
}

func ruleRSIBands(s bar.Series, snap *indicator.Snapshot) []Signal {
	rsi := snap.RSI14.Last()
	if indicator.IsUndefined(rsi) {
		return nil
	}
	switch {
	case rsi < 20:
		return []Signal{{Name: "RSI_EXTREME_OVERSOLD", Category: CategoryRSI, Strength: StrengthExtremeBullish, Value: rsi}}
	case rsi < 30:
		return []Signal{{Name: "RSI_OVERSOLD", Category: CategoryRSI, Strength: StrengthBullish, Value: rsi}}
	case rsi > 80:
		return []Signal{{Name: "RSI_EXTREME_OVERBOUGHT", Category: CategoryRSI, Strength: StrengthExtremeBearish, Value: rsi}}
	case rsi > 70:
		return []Signal{{Name: "RSI_OVERBOUGHT", Category: CategoryRSI, Strength: StrengthBearish, Value: rsi}}
	}
	return nil
}

func ruleMACDCrosses(s bar.Series, snap *indicator.Snapshot) []Signal {
	var out []Signal
	macd, sig, hist := snap.MACD.MACD, snap.MACD.Signal, snap.MACD.Histogram

	if !indicator.IsUndefined(macd.Prev()) && !indicator.IsUndefined(macd.Last()) {
		if macd.Prev() <= 0 && macd.Last() > 0 {
			out = append(out, Signal{Name: "MACD_ZERO_CROSS_BULLISH", Category: CategoryMACD, Strength: StrengthBullish, Value: macd.Last()})
		} else if macd.Prev() >= 0 && macd.Last() < 0 {
			out = append(out, Signal{Name: "MACD_ZERO_CROSS_BEARISH", Category: CategoryMACD, Strength: StrengthBearish, Value: macd.Last()})
		}
	}

	if !indicator.IsUndefined(macd.Prev()) && !indicator.IsUndefined(sig.Prev()) &&
		!indicator.IsUndefined(macd.Last()) && !indicator.IsUndefined(sig.Last()) {
		prevDiff := macd.Prev() - sig.Prev()
		lastDiff := macd.Last() - sig.Last()
		if prevDiff <= 0 && lastDiff > 0 {
			out = append(out, Signal{Name: "MACD_SIGNAL_CROSS_BULLISH", Category: CategoryMACD, Strength: StrengthStrongBullish, Value: lastDiff})
		} else if prevDiff >= 0 && lastDiff < 0 {
			out = append(out, Signal{Name: "MACD_SIGNAL_CROSS_BEARISH", Category: CategoryMACD, Strength: StrengthStrongBearish, Value: lastDiff})
		}
	}

	if !indicator.IsUndefined(hist.Prev()) && !indicator.IsUndefined(hist.Last()) {
		if hist.Prev() <= 0 && hist.Last() > 0 {
			out = append(out, Signal{Name: "MACD_HISTOGRAM_FLIP_BULLISH", Category: CategoryMACD, Strength: StrengthBullish, Value: hist.Last()})
		} else if hist.Prev() >= 0 && hist.Last() < 0 {
			out = append(out, Signal{Name: "MACD_HISTOGRAM_FLIP_BEARISH", Category: CategoryMACD, Strength: StrengthBearish, Value: hist.Last()})
		}
	}
	return out
}

const bollingerTouchTolerance = 0.01 // ±1% of the band

func ruleBollingerTouch(s bar.Series, snap *indicator.Snapshot) []Signal {
	price := s.LastClose()
	upper, lower := snap.Bollinger.Upper.Last(), snap.Bollinger.Lower.Last()
	if indicator.IsUndefined(upper) || indicator.IsUndefined(lower) {
		return nil
	}
	var out []Signal
	if upper != 0 && math.Abs(price-upper)/upper <= bollingerTouchTolerance {
		out = append(out, Signal{Name: "BOLLINGER_UPPER_TOUCH", Category: CategoryBollinger, Strength: StrengthBearish, Value: price - upper})
	}
	if lower != 0 && math.Abs(price-lower)/lower <= bollingerTouchTolerance {
		out = append(out, Signal{Name: "BOLLINGER_LOWER_TOUCH", Category: CategoryBollinger, Strength: StrengthBullish, Value: price - lower})
	}
	return out
}

func ruleStochasticBands(s bar.Series, snap *indicator.Snapshot) []Signal {
	k := snap.Stochastic.K.Last()
	if indicator.IsUndefined(k) {
		return nil
	}
	switch {
	case k < 20:
		return []Signal{{Name: "STOCHASTIC_OVERSOLD", Category: CategoryStochastic, Strength: StrengthBullish, Value: k}}
	case k > 80:
		return []Signal{{Name: "STOCHASTIC_OVERBOUGHT", Category: CategoryStochastic, Strength: StrengthBearish, Value: k}}
	}
	return nil
}

func ruleVolumeSpike(s bar.Series, snap *indicator.Snapshot) []Signal {
	ratio := snap.VolumeRatio(s.Last().Volume)
	if indicator.IsUndefined(ratio) {
		return nil
	}
	strength := StrengthNeutral
	if len(snap.EMA[5]) > 0 && len(s.Bars) > 1 {
		if s.Last().Close >= s.Bars[len(s.Bars)-2].Close {
			strength = StrengthBullish
		} else {
			strength = StrengthBearish
		}
	}
	switch {
	case ratio >= 3.0:
		return []Signal{{Name: "VOLUME_SPIKE_3X", Category: CategoryVolume, Strength: strength, Value: ratio}}
	case ratio >= 2.0:
		return []Signal{{Name: "VOLUME_SPIKE_2X", Category: CategoryVolume, Strength: strength, Value: ratio}}
	}
	return nil
}

func ruleADXTrend(s bar.Series, snap *indicator.Snapshot) []Signal {
	adx := snap.ADX.ADX.Last()
	if indicator.IsUndefined(adx) {
		return nil
	}
	plusDI, minusDI := snap.ADX.PlusDI.Last(), snap.ADX.MinusDI.Last()
	strength := StrengthNeutral
	if plusDI > minusDI {
		strength = StrengthBullish
	} else if minusDI > plusDI {
		strength = StrengthBearish
	}
	switch {
	case adx >= 40:
		return []Signal{{Name: "TREND_VERY_STRONG", Category: CategoryTrend, Strength: strength, Value: adx}}
	case adx >= 25:
		return []Signal{{Name: "TREND_STRONG", Category: CategoryTrend, Strength: strength, Value: adx}}
	case adx >= 20:
		return []Signal{{Name: "TREND_EMERGING", Category: CategoryTrend, Strength: strength, Value: adx}}
	}
	return nil
}
