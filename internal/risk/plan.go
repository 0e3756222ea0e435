package risk

import "sentinel/internal/signal"

const (
	expectedMoveStockThreshold = 3.0 // percent; below this, a stock plan is preferred over options
	optionDTEMin               = 30
	optionDTEMax               = 45
	optionDeltaLow             = 0.40
	optionDeltaHigh            = 0.60
)

// BuildPlan composes a TradePlan from an Assessment and the ranked signal
// set: the highest-scored signal becomes primary, the rest supporting, and
// the vehicle is selected by a volatility/timeframe/expected-move ladder.
func BuildPlan(a Assessment, ranked []signal.RankedSignal) TradePlan {
	plan := TradePlan{Assessment: a}

	if len(ranked) > 0 {
		primary := ranked[0].Signal
		plan.PrimarySignal = &primary
		for _, r := range ranked[1:] {
			plan.SupportingSignals = append(plan.SupportingSignals, r.Signal)
		}
	}

	plan.Vehicle = selectVehicle(a)
	if plan.Vehicle != VehicleStock {
		plan.OptionSuggestions = buildOptionSuggestion(a, plan.Vehicle)
	}
	return plan
}

func selectVehicle(a Assessment) Vehicle {
	expectedMove := a.ATRPct
	if a.Timeframe != TimeframeSwing || expectedMove < expectedMoveStockThreshold || a.Volatility == VolatilityLow {
		return VehicleStock
	}
	if a.Volatility == VolatilityMedium {
		if a.Bias == BiasBearish {
			return VehicleOptionPut
		}
		return VehicleOptionCall
	}
	return VehicleOptionSpread
}

func buildOptionSuggestion(a Assessment, vehicle Vehicle) *OptionSuggestion {
	deltaLow, deltaHigh := optionDeltaLow, optionDeltaHigh
	if vehicle == VehicleOptionPut {
		deltaLow, deltaHigh = -optionDeltaHigh, -optionDeltaLow
	}
	return &OptionSuggestion{
		DTEMin: optionDTEMin, DTEMax: optionDTEMax,
		DeltaLow: deltaLow, DeltaHigh: deltaHigh,
		SpreadWidth: a.ATR,
	}
}
