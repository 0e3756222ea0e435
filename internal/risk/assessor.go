package risk

import (
	"fmt"
	"math"

	"sentinel/internal/apperr"
	"sentinel/internal/bar"
	"sentinel/internal/indicator"
	"sentinel/internal/signal"
)

// biasMargin is the minimum bullish/bearish vote gap required to declare a
// direction.
const biasMargin = 2

var stopMultByTimeframe = map[Timeframe]float64{
	TimeframeScalp: 1.0,
	TimeframeDay:   1.5,
	TimeframeSwing: 2.0,
}

const preferredRRMultiple = 2.0

// Assess builds a RiskAssessment from the indicator snapshot and the
// detected signal set. It fails with apperr.ErrInsufficientData when ATR or
// ADX windows are unavailable; that is the only failure mode.
func Assess(s bar.Series, snap *indicator.Snapshot, signals []signal.Signal) (Assessment, error) {
	atr := snap.ATR.Last()
	adx := snap.ADX.ADX.Last()
	if indicator.IsUndefined(atr) || indicator.IsUndefined(adx) {
		return Assessment{}, fmt.Errorf("risk assess %s: %w", s.Symbol, apperr.ErrInsufficientData)
	}

	price := s.LastClose()
	atrPct := snap.ATRPercent(price)
	volRatio := snap.VolumeRatio(s.Last().Volume)

	volatility := classifyVolatility(atrPct)
	bias := classifyBias(signals)
	timeframe := classifyTimeframe(volatility, adx, len(signals))

	stop := placeStop(price, atr, timeframe, bias)
	target := placeTarget(price, stop, bias)
	rr := computeRR(price, stop.Price, target.Price)

	quality := scoreQuality(rr.Ratio, adx, volatility)
	suppressions := suppressionsFor(rr.Ratio, adx, signals, volRatio, stop.Pct)

	return Assessment{
		ATR: atr, ATRPct: atrPct, Volatility: volatility,
		ADX: adx, IsTrending: adx >= 20, VolumeRatio: volRatio,
		Bias: bias, Timeframe: timeframe,
		Stop: stop, Target: target, RR: rr,
		Quality: quality, Suppressions: suppressions,
	}, nil
}

func classifyVolatility(atrPct float64) VolatilityRegime {
	switch {
	case atrPct < 1.5:
		return VolatilityLow
	case atrPct > 3.0:
		return VolatilityHigh
	default:
		return VolatilityMedium
	}
}

func classifyBias(signals []signal.Signal) Bias {
	bull, bear := 0, 0
	for _, sig := range signals {
		if sig.Strength.IsBullish() {
			bull++
		} else if sig.Strength.IsBearish() {
			bear++
		}
	}
	if bull-bear >= biasMargin {
		return BiasBullish
	}
	if bear-bull >= biasMargin {
		return BiasBearish
	}
	return BiasNeutral
}

func classifyTimeframe(vol VolatilityRegime, adx float64, signalCount int) Timeframe {
	if vol == VolatilityLow && adx > 25 {
		return TimeframeScalp
	}
	if vol == VolatilityHigh || adx > 40 || signalCount > 10 {
		return TimeframeSwing
	}
	return TimeframeDay
}

// placeStop implements the ATR-multiple stop distance, clamped to
// [0.5*ATR, 3.0*ATR] and placed on the side of entry opposite the bias,
// with the multiplier widening as the holding timeframe lengthens.
func placeStop(price, atr float64, timeframe Timeframe, bias Bias) Stop {
	mult := stopMultByTimeframe[timeframe]
	distance := atr * mult
	minDist, maxDist := 0.5*atr, 3.0*atr
	if distance < minDist {
		distance = minDist
	}
	if distance > maxDist {
		distance = maxDist
	}
	effectiveMult := 0.0
	if atr != 0 {
		effectiveMult = distance / atr
	}

	stopPrice := price - distance
	if bias == BiasBearish {
		stopPrice = price + distance
	}

	pct := 0.0
	if price != 0 {
		pct = math.Abs(price-stopPrice) / price * 100
	}
	return Stop{Price: stopPrice, ATRMult: effectiveMult, Pct: pct}
}

func placeTarget(price float64, stop Stop, bias Bias) Target {
	risk := math.Abs(price - stop.Price)
	reward := risk * preferredRRMultiple

	targetPrice := price + reward
	if bias == BiasBearish {
		targetPrice = price - reward
	}

	pct := 0.0
	if price != 0 {
		pct = math.Abs(targetPrice-price) / price * 100
	}
	atrMult := 0.0
	if stop.ATRMult != 0 {
		atrMult = stop.ATRMult * preferredRRMultiple
	}
	return Target{Price: targetPrice, Pct: pct, ATRMult: atrMult}
}

func computeRR(price, stopPrice, targetPrice float64) RewardRisk {
	risk := math.Abs(price - stopPrice)
	reward := math.Abs(targetPrice - price)
	ratio := 0.0
	if risk != 0 {
		ratio = reward / risk
	}
	return RewardRisk{Risk: risk, Reward: reward, Ratio: ratio}
}

func scoreQuality(rrRatio, adx float64, vol VolatilityRegime) Quality {
	points := 0
	switch {
	case rrRatio >= 2.5:
		points += 3
	case rrRatio >= 2.0:
		points += 2
	case rrRatio >= 1.5:
		points += 1
	}
	switch {
	case adx >= 40:
		points += 3
	case adx >= 25:
		points += 2
	case adx >= 20:
		points += 1
	}
	switch vol {
	case VolatilityLow:
		points += 2
	case VolatilityMedium:
		points += 1
	}

	switch {
	case points >= 7:
		return QualityHigh
	case points >= 4:
		return QualityMedium
	default:
		return QualityLow
	}
}

func suppressionsFor(rrRatio, adx float64, signals []signal.Signal, volRatio, stopPct float64) []string {
	var out []string
	if rrRatio < 1.5 {
		out = append(out, "rr_below_1.5")
	}
	if adx < 20 {
		out = append(out, "adx_below_20")
	}
	bull, bear := 0, 0
	for _, sig := range signals {
		if sig.Strength.IsBullish() {
			bull++
		} else if sig.Strength.IsBearish() {
			bear++
		}
	}
	total := len(signals)
	if total > 0 {
		minCount := bull
		if bear < minCount {
			minCount = bear
		}
		if float64(minCount)/float64(total) > 0.4 {
			out = append(out, "conflicting_signals")
		}
	}
	if indicator.IsUndefined(volRatio) || volRatio < 0.5 {
		out = append(out, "volume_ratio_below_0.5")
	}
	if stopPct > 10 {
		out = append(out, "stop_pct_above_10")
	}
	return out
}
