// Package risk implements the RiskAssessor: volatility regime, directional
// bias, timeframe selection, ATR-based stop placement, R:R target, quality
// scoring, suppression predicates and vehicle selection. The stop is
// placed at entry ± atr*multiplier; ATR is a hard precondition
// (InsufficientData) rather than silently estimated, since the assessor
// always has the full indicator snapshot in hand before it runs.
package risk

import "sentinel/internal/signal"

// VolatilityRegime classifies ATR% into a three-band regime.
type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "LOW"
	VolatilityMedium VolatilityRegime = "MEDIUM"
	VolatilityHigh   VolatilityRegime = "HIGH"
)

// Bias is the net directional read across the signal set.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// Timeframe is the holding-period classification driving stop distance.
type Timeframe string

const (
	TimeframeScalp Timeframe = "SCALP"
	TimeframeDay   Timeframe = "DAY"
	TimeframeSwing Timeframe = "SWING"
)

// Quality is the coarse trade-plan quality score.
type Quality string

const (
	QualityLow    Quality = "LOW"
	QualityMedium Quality = "MEDIUM"
	QualityHigh   Quality = "HIGH"
)

// Vehicle is the instrument selected to express the trade idea.
type Vehicle string

const (
	VehicleStock       Vehicle = "STOCK"
	VehicleOptionCall  Vehicle = "OPTION_CALL"
	VehicleOptionPut   Vehicle = "OPTION_PUT"
	VehicleOptionSpread Vehicle = "OPTION_SPREAD"
)

// Stop is the placed stop-loss.
type Stop struct {
	Price   float64 `json:"price"`
	ATRMult float64 `json:"atr_mult"`
	Pct     float64 `json:"pct"`
}

// Target is the profit target derived from the preferred R:R.
type Target struct {
	Price   float64 `json:"price"`
	Pct     float64 `json:"pct"`
	ATRMult float64 `json:"atr_mult"`
}

// RewardRisk is the risk/reward pair and its ratio.
type RewardRisk struct {
	Risk   float64 `json:"risk"`
	Reward float64 `json:"reward"`
	Ratio  float64 `json:"ratio"`
}

// Assessment is the full computed risk-assessment record.
type Assessment struct {
	ATR         float64          `json:"atr"`
	ATRPct      float64          `json:"atr_pct"`
	Volatility  VolatilityRegime `json:"volatility"`
	ADX         float64          `json:"adx"`
	IsTrending  bool             `json:"is_trending"`
	VolumeRatio float64          `json:"volume_ratio"`
	Bias        Bias             `json:"bias"`
	Timeframe   Timeframe        `json:"timeframe"`
	Stop        Stop             `json:"stop"`
	Target      Target           `json:"target"`
	RR          RewardRisk       `json:"rr"`
	Quality     Quality          `json:"quality"`
	Suppressions []string        `json:"suppressions"`
}

// OptionSuggestion narrows the option structure the vehicle selection
// recommends when Vehicle is directional-option or spread.
type OptionSuggestion struct {
	DTEMin     int     `json:"dte_min"`
	DTEMax     int     `json:"dte_max"`
	DeltaLow   float64 `json:"delta_low"`
	DeltaHigh  float64 `json:"delta_high"`
	SpreadWidth float64 `json:"spread_width"`
}

// TradePlan is an Assessment plus the vehicle recommendation and the
// signals that drove it.
type TradePlan struct {
	Assessment
	Vehicle           Vehicle           `json:"vehicle"`
	OptionSuggestions *OptionSuggestion `json:"option_suggestions,omitempty"`
	PrimarySignal     *signal.Signal    `json:"primary_signal,omitempty"`
	SupportingSignals []signal.Signal   `json:"supporting_signals"`
}

// IsQualified reports whether a TradePlan clears the bar to act on.
func (p TradePlan) IsQualified() bool {
	return p.RR.Ratio >= 1.5 &&
		p.Quality != QualityLow &&
		p.Bias != BiasNeutral &&
		len(p.Suppressions) == 0 &&
		p.Stop.ATRMult >= 0.5 && p.Stop.ATRMult <= 3.0 &&
		p.ADX >= 20 &&
		p.VolumeRatio >= 0.5
}
