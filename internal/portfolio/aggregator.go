package portfolio

import (
	"context"

	"sentinel/internal/bar"
	"sentinel/internal/indicator"
	"sentinel/internal/risk"
	"sentinel/internal/signal"
)

// SeriesFetcher is the capability portfolio needs from internal/quote: one
// symbol's bar series for the position's period, used to derive a stop via
// internal/risk. Kept as a local interface so this package never imports
// the vendor adapter directly.
type SeriesFetcher interface {
	Series(ctx context.Context, symbol, period string) (bar.Series, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// SectorLookup resolves a symbol to its GICS-style sector name for
// concentration accounting; internal/universe supplies the concrete table.
type SectorLookup func(symbol string) string

const defaultStopFraction = 0.95

const (
	riskLowThreshold    = 0.03
	riskMediumThreshold = 0.07
	riskHighThreshold   = 0.12

	singlePositionConcentrationThreshold = 0.40
	sectorConcentrationThreshold         = 0.60
	lowQualityPositionShareThreshold     = 0.30
)

// Aggregate runs the full portfolio assessment end to end: per-position
// risk and value, sector concentration, escalating risk level, and hedge
// suggestions.
func Aggregate(ctx context.Context, positions []Position, fetcher SeriesFetcher, sectorOf SectorLookup) (Assessment, error) {
	engine := indicator.NewEngine()
	reports := make([]PositionReport, 0, len(positions))
	sectorValue := map[string]float64{}

	var totalValue, totalMaxLoss float64
	lowQualityCount := 0

	for _, pos := range positions {
		price, err := fetcher.CurrentPrice(ctx, pos.Symbol)
		if err != nil {
			price = pos.EntryPrice
		}

		stop := pos.EntryPrice * defaultStopFraction
		quality := risk.QualityMedium

		if series, err := fetcher.Series(ctx, pos.Symbol, "1mo"); err == nil && series.HasFullAnalysisWindow() {
			snap := engine.Analyze(series)
			signals := signal.Detect(series, snap, signal.DefaultRules())
			if a, err := risk.Assess(series, snap, signals); err == nil {
				stop = a.Stop.Price
				quality = a.Quality
			}
		}

		currentValue := price * pos.Shares
		unrealizedPnL := (price - pos.EntryPrice) * pos.Shares
		maxLoss := absf(price-stop) * pos.Shares

		sector := sectorOf(pos.Symbol)
		sectorValue[sector] += currentValue

		if quality == risk.QualityLow {
			lowQualityCount++
		}

		totalValue += currentValue
		totalMaxLoss += maxLoss

		reports = append(reports, PositionReport{
			Symbol: pos.Symbol, Shares: pos.Shares, EntryPrice: pos.EntryPrice,
			CurrentPrice: price, CurrentValue: currentValue, UnrealizedPnL: unrealizedPnL,
			Stop: stop, MaxLoss: maxLoss, Quality: quality, Sector: sector,
		})
	}

	riskPct := 0.0
	if totalValue != 0 {
		riskPct = totalMaxLoss / totalValue
	}

	sectorConcentration := make(map[string]float64, len(sectorValue))
	for sector, value := range sectorValue {
		if totalValue != 0 {
			sectorConcentration[sector] = value / totalValue * 100
		}
	}

	level := baseRiskLevel(riskPct)
	if escalationTriggered(reports, totalValue, sectorConcentration, lowQualityCount) {
		level = escalate(level)
	}

	hedges := buildHedges(sectorConcentration, lowQualityCount, riskPct)

	return Assessment{
		Positions: reports, TotalValue: totalValue, TotalMaxLoss: totalMaxLoss,
		RiskPct: riskPct, RiskLevel: level, SectorConcentration: sectorConcentration, Hedges: hedges,
	}, nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func baseRiskLevel(riskPct float64) RiskLevel {
	switch {
	case riskPct < riskLowThreshold:
		return RiskLow
	case riskPct < riskMediumThreshold:
		return RiskMedium
	case riskPct < riskHighThreshold:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

func escalate(level RiskLevel) RiskLevel {
	switch level {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	case RiskHigh:
		return RiskExtreme
	default:
		return RiskExtreme
	}
}

func escalationTriggered(reports []PositionReport, totalValue float64, sectorConcentration map[string]float64, lowQualityCount int) bool {
	if totalValue != 0 {
		for _, r := range reports {
			if r.CurrentValue/totalValue > singlePositionConcentrationThreshold {
				return true
			}
		}
	}
	for _, pct := range sectorConcentration {
		if pct/100 > sectorConcentrationThreshold {
			return true
		}
	}
	if len(reports) > 0 && float64(lowQualityCount)/float64(len(reports)) > lowQualityPositionShareThreshold {
		return true
	}
	return false
}

func buildHedges(sectorConcentration map[string]float64, lowQualityCount int, riskPct float64) []Hedge {
	var hedges []Hedge
	for sector, pct := range sectorConcentration {
		if pct/100 <= 0.40 {
			continue
		}
		etf := sectorETF[sector]
		hedges = append(hedges, Hedge{
			Kind: HedgeSectorOverweight, Sector: sector, ETF: etf,
			SizingNote: "size puts to hedge 50% of the overweight exposure",
		})
	}
	if lowQualityCount >= 2 {
		hedges = append(hedges, Hedge{Kind: HedgeLowQuality, SizingNote: "tighten stops on low-quality positions"})
	}
	if riskPct > 0.10 {
		hedges = append(hedges, Hedge{Kind: HedgeIndexPutSpread, SizingNote: "index put spread sized at 20% notional"})
	}
	return hedges
}
