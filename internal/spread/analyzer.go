package spread

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"sentinel/internal/apperr"
)

const hundred = 100

// Input is the caller-supplied parameters for one spread analysis. Not
// every field applies to every Type: verticals use Short/Long; iron
// condor/butterfly use all four wing fields.
type Input struct {
	Symbol          string
	Type            Type
	Contracts       int
	DTE             int
	UnderlyingPrice float64
	IV              float64 // implied volatility as a decimal fraction, e.g. 0.35

	ShortStrike, LongStrike   decimal.Decimal
	ShortPremium, LongPremium decimal.Decimal

	ShortPutStrike, LongPutStrike   decimal.Decimal
	ShortCallStrike, LongCallStrike decimal.Decimal
	ShortPutPremium, LongPutPremium   decimal.Decimal
	ShortCallPremium, LongCallPremium decimal.Decimal

	ShortGreeks, LongGreeks                     Greeks
	ShortPutGreeks, LongPutGreeks                Greeks
	ShortCallGreeks, LongCallGreeks              Greeks
	ShortOpenInterest, LongOpenInterest          int
	IVPercentile                                 float64
}

// Analyze dispatches to the strategy-specific computation and attaches the
// common POP/status/warnings derivation.
func Analyze(in Input) (Result, error) {
	if in.Contracts <= 0 {
		in.Contracts = 1
	}
	var res Result
	var err error
	switch in.Type {
	case TypeCallCredit:
		res, err = analyzeCallCredit(in)
	case TypePutCredit:
		res, err = analyzePutCredit(in)
	case TypeCallDebit:
		res, err = analyzeCallDebit(in)
	case TypePutDebit:
		res, err = analyzePutDebit(in)
	case TypeIronCondor:
		res, err = analyzeIronCondor(in)
	case TypeIronButterfly:
		res, err = analyzeIronButterfly(in)
	default:
		return Result{}, fmt.Errorf("spread analyze %s: unknown type %q: %w", in.Symbol, in.Type, apperr.ErrValidation)
	}
	if err != nil {
		return Result{}, err
	}

	res.Symbol = in.Symbol
	res.Type = in.Type
	res.DTE = in.DTE
	res.POP = probabilityOfProfit(in, res)
	res.RR = rewardRisk(res)
	res.NetGreeks = aggregateGreeks(res.Legs)
	res.Status = classifyStatus(in.UnderlyingPrice, res)
	res.Warnings = collectWarnings(in, res)
	return res, nil
}

func n(in Input) decimal.Decimal { return decimal.NewFromInt(int64(in.Contracts)) }

func analyzeCallCredit(in Input) (Result, error) {
	if in.ShortStrike.IsZero() || in.LongStrike.IsZero() {
		return Result{}, fmt.Errorf("spread call_credit %s: %w", in.Symbol, apperr.ErrOptionDataUnavailable)
	}
	credit := in.ShortPremium.Sub(in.LongPremium)
	width := in.LongStrike.Sub(in.ShortStrike)
	maxProfit := credit.Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	maxLoss := width.Sub(credit).Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	breakeven := in.ShortStrike.Add(credit)

	legs := []Leg{
		{Kind: KindCall, Side: SideShort, Strike: in.ShortStrike, Premium: in.ShortPremium, Greeks: in.ShortGreeks, OpenInterest: in.ShortOpenInterest},
		{Kind: KindCall, Side: SideLong, Strike: in.LongStrike, Premium: in.LongPremium, Greeks: in.LongGreeks, OpenInterest: in.LongOpenInterest},
	}
	return Result{Legs: legs, MaxProfit: maxProfit, MaxLoss: maxLoss, Breakevens: []decimal.Decimal{breakeven}, NetDebitCredit: credit}, nil
}

func analyzePutCredit(in Input) (Result, error) {
	if in.ShortStrike.IsZero() || in.LongStrike.IsZero() {
		return Result{}, fmt.Errorf("spread put_credit %s: %w", in.Symbol, apperr.ErrOptionDataUnavailable)
	}
	credit := in.ShortPremium.Sub(in.LongPremium)
	width := in.ShortStrike.Sub(in.LongStrike)
	maxProfit := credit.Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	maxLoss := width.Sub(credit).Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	breakeven := in.ShortStrike.Sub(credit)

	legs := []Leg{
		{Kind: KindPut, Side: SideShort, Strike: in.ShortStrike, Premium: in.ShortPremium, Greeks: in.ShortGreeks, OpenInterest: in.ShortOpenInterest},
		{Kind: KindPut, Side: SideLong, Strike: in.LongStrike, Premium: in.LongPremium, Greeks: in.LongGreeks, OpenInterest: in.LongOpenInterest},
	}
	return Result{Legs: legs, MaxProfit: maxProfit, MaxLoss: maxLoss, Breakevens: []decimal.Decimal{breakeven}, NetDebitCredit: credit.Neg()}, nil
}

func analyzeCallDebit(in Input) (Result, error) {
	if in.ShortStrike.IsZero() || in.LongStrike.IsZero() {
		return Result{}, fmt.Errorf("spread call_debit %s: %w", in.Symbol, apperr.ErrOptionDataUnavailable)
	}
	debit := in.LongPremium.Sub(in.ShortPremium)
	width := in.ShortStrike.Sub(in.LongStrike)
	maxProfit := width.Sub(debit).Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	maxLoss := debit.Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	breakeven := in.LongStrike.Add(debit)

	legs := []Leg{
		{Kind: KindCall, Side: SideLong, Strike: in.LongStrike, Premium: in.LongPremium, Greeks: in.LongGreeks, OpenInterest: in.LongOpenInterest},
		{Kind: KindCall, Side: SideShort, Strike: in.ShortStrike, Premium: in.ShortPremium, Greeks: in.ShortGreeks, OpenInterest: in.ShortOpenInterest},
	}
	return Result{Legs: legs, MaxProfit: maxProfit, MaxLoss: maxLoss, Breakevens: []decimal.Decimal{breakeven}, NetDebitCredit: debit.Neg()}, nil
}

func analyzePutDebit(in Input) (Result, error) {
	if in.ShortStrike.IsZero() || in.LongStrike.IsZero() {
		return Result{}, fmt.Errorf("spread put_debit %s: %w", in.Symbol, apperr.ErrOptionDataUnavailable)
	}
	debit := in.LongPremium.Sub(in.ShortPremium)
	width := in.LongStrike.Sub(in.ShortStrike)
	maxProfit := width.Sub(debit).Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	maxLoss := debit.Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	breakeven := in.LongStrike.Sub(debit)

	legs := []Leg{
		{Kind: KindPut, Side: SideLong, Strike: in.LongStrike, Premium: in.LongPremium, Greeks: in.LongGreeks, OpenInterest: in.LongOpenInterest},
		{Kind: KindPut, Side: SideShort, Strike: in.ShortStrike, Premium: in.ShortPremium, Greeks: in.ShortGreeks, OpenInterest: in.ShortOpenInterest},
	}
	return Result{Legs: legs, MaxProfit: maxProfit, MaxLoss: maxLoss, Breakevens: []decimal.Decimal{breakeven}, NetDebitCredit: debit.Neg()}, nil
}

func analyzeIronCondor(in Input) (Result, error) {
	if in.ShortPutStrike.IsZero() || in.LongPutStrike.IsZero() || in.ShortCallStrike.IsZero() || in.LongCallStrike.IsZero() {
		return Result{}, fmt.Errorf("spread iron_condor %s: %w", in.Symbol, apperr.ErrOptionDataUnavailable)
	}
	credit := in.ShortPutPremium.Sub(in.LongPutPremium).Add(in.ShortCallPremium).Sub(in.LongCallPremium)
	putWidth := in.ShortPutStrike.Sub(in.LongPutStrike)
	callWidth := in.LongCallStrike.Sub(in.ShortCallStrike)
	width := putWidth
	if callWidth.GreaterThan(width) {
		width = callWidth
	}
	maxProfit := credit.Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	maxLoss := width.Sub(credit).Mul(decimal.NewFromInt(hundred)).Mul(n(in))

	breakevenCall := in.ShortCallStrike.Add(credit)
	breakevenPut := in.ShortPutStrike.Sub(credit)

	legs := []Leg{
		{Kind: KindPut, Side: SideShort, Strike: in.ShortPutStrike, Premium: in.ShortPutPremium, Greeks: in.ShortPutGreeks},
		{Kind: KindPut, Side: SideLong, Strike: in.LongPutStrike, Premium: in.LongPutPremium, Greeks: in.LongPutGreeks},
		{Kind: KindCall, Side: SideShort, Strike: in.ShortCallStrike, Premium: in.ShortCallPremium, Greeks: in.ShortCallGreeks},
		{Kind: KindCall, Side: SideLong, Strike: in.LongCallStrike, Premium: in.LongCallPremium, Greeks: in.LongCallGreeks},
	}
	return Result{Legs: legs, MaxProfit: maxProfit, MaxLoss: maxLoss, Breakevens: []decimal.Decimal{breakevenPut, breakevenCall}, NetDebitCredit: credit}, nil
}

func analyzeIronButterfly(in Input) (Result, error) {
	if in.ShortPutStrike.IsZero() || in.LongPutStrike.IsZero() || in.ShortCallStrike.IsZero() || in.LongCallStrike.IsZero() {
		return Result{}, fmt.Errorf("spread iron_butterfly %s: %w", in.Symbol, apperr.ErrOptionDataUnavailable)
	}
	// short put and short call share the center strike by construction.
	center := in.ShortPutStrike
	credit := in.ShortPutPremium.Add(in.ShortCallPremium).Sub(in.LongPutPremium).Sub(in.LongCallPremium)
	putWing := center.Sub(in.LongPutStrike)
	callWing := in.LongCallStrike.Sub(center)
	wing := putWing
	if callWing.GreaterThan(wing) {
		wing = callWing
	}
	maxProfit := credit.Mul(decimal.NewFromInt(hundred)).Mul(n(in))
	maxLoss := wing.Sub(credit).Mul(decimal.NewFromInt(hundred)).Mul(n(in))

	breakevenUp := center.Add(credit)
	breakevenDown := center.Sub(credit)

	legs := []Leg{
		{Kind: KindPut, Side: SideLong, Strike: in.LongPutStrike, Premium: in.LongPutPremium, Greeks: in.LongPutGreeks},
		{Kind: KindPut, Side: SideShort, Strike: in.ShortPutStrike, Premium: in.ShortPutPremium, Greeks: in.ShortPutGreeks},
		{Kind: KindCall, Side: SideShort, Strike: in.ShortCallStrike, Premium: in.ShortCallPremium, Greeks: in.ShortCallGreeks},
		{Kind: KindCall, Side: SideLong, Strike: in.LongCallStrike, Premium: in.LongCallPremium, Greeks: in.LongCallGreeks},
	}
	return Result{Legs: legs, MaxProfit: maxProfit, MaxLoss: maxLoss, Breakevens: []decimal.Decimal{breakevenDown, breakevenUp}, NetDebitCredit: credit}, nil
}

// normalCDF is the standard normal Φ, via the stdlib error function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// probabilityOfProfit implements a log-normal approximation of probability
// of profit: std = iv * price * sqrt(dte/365); profit iff price stays on
// the credit side of the relevant breakeven(s).
func probabilityOfProfit(in Input, res Result) float64 {
	if in.IV <= 0 || in.UnderlyingPrice <= 0 || len(res.Breakevens) == 0 {
		return 0
	}
	std := in.IV * in.UnderlyingPrice * math.Sqrt(float64(in.DTE)/365.0)
	if std == 0 {
		return 0
	}

	isCredit := res.NetDebitCredit.Sign() > 0

	switch in.Type {
	case TypeCallCredit, TypeCallDebit:
		be, _ := res.Breakevens[0].Float64()
		if isCredit {
			return normalCDF((be - in.UnderlyingPrice) / std)
		}
		return normalCDF((in.UnderlyingPrice - be) / std)
	case TypePutCredit, TypePutDebit:
		be, _ := res.Breakevens[0].Float64()
		if isCredit {
			return normalCDF((in.UnderlyingPrice - be) / std)
		}
		return normalCDF((be - in.UnderlyingPrice) / std)
	case TypeIronCondor, TypeIronButterfly:
		loBE, _ := res.Breakevens[0].Float64()
		hiBE, _ := res.Breakevens[1].Float64()
		pUpper := normalCDF((hiBE - in.UnderlyingPrice) / std)
		pLower := normalCDF((in.UnderlyingPrice - loBE) / std)
		return pUpper + pLower - 1
	}
	return 0
}

// rewardRisk reports the spread's risk:reward ratio (max_loss/max_profit),
// the inverse of the directional TradePlan's reward:risk ratio, since a
// credit spread typically risks several times what it can collect.
func rewardRisk(res Result) float64 {
	profit := res.MaxProfit
	if profit.IsZero() {
		return 0
	}
	lossF, _ := res.MaxLoss.Float64()
	profitF, _ := profit.Float64()
	if profitF == 0 {
		return 0
	}
	return lossF / profitF
}

func aggregateGreeks(legs []Leg) Greeks {
	var total Greeks
	for _, l := range legs {
		total = total.Add(l.SignedGreeks())
	}
	return total
}

func classifyStatus(price float64, res Result) Status {
	if len(res.Breakevens) == 0 {
		return StatusAtRisk
	}
	maxProfit, _ := res.MaxProfit.Float64()
	maxLoss, _ := res.MaxLoss.Float64()

	switch len(res.Breakevens) {
	case 1:
		be, _ := res.Breakevens[0].Float64()
		dist := math.Abs(price - be)
		if maxProfit > 0 && withinStatusBand(dist, 0, be*0.001) {
			return StatusBreakeven
		}
		isCredit := res.NetDebitCredit.Sign() > 0
		profitSide := (isCredit && isBullishCreditWins(res.Type, price, be)) || (!isCredit && isDebitWins(res.Type, price, be))
		if profitSide {
			return StatusProfitable
		}
		if maxLoss > 0 {
			return StatusAtRisk
		}
		return StatusMaxLoss
	case 2:
		lo, _ := res.Breakevens[0].Float64()
		hi, _ := res.Breakevens[1].Float64()
		if price > lo && price < hi {
			return StatusMaxProfit
		}
		if price < lo*0.98 || price > hi*1.02 {
			return StatusMaxLoss
		}
		return StatusAtRisk
	}
	return StatusAtRisk
}

func withinStatusBand(dist, low, high float64) bool {
	return dist >= low && dist <= high
}

func isBullishCreditWins(t Type, price, be float64) bool {
	switch t {
	case TypeCallCredit:
		return price <= be
	case TypePutCredit:
		return price >= be
	}
	return false
}

func isDebitWins(t Type, price, be float64) bool {
	switch t {
	case TypeCallDebit:
		return price >= be
	case TypePutDebit:
		return price <= be
	}
	return false
}

const lowLiquidityThreshold = 50

func collectWarnings(in Input, res Result) []string {
	var warnings []string
	if in.DTE < 7 {
		warnings = append(warnings, "dte_below_7")
	}
	for _, l := range res.Legs {
		if l.OpenInterest > 0 && l.OpenInterest < lowLiquidityThreshold {
			warnings = append(warnings, "low_open_interest")
			break
		}
	}
	if in.IVPercentile >= 90 || (in.IVPercentile > 0 && in.IVPercentile <= 10) {
		warnings = append(warnings, "iv_percentile_extreme")
	}
	if len(res.Breakevens) > 0 {
		be, _ := res.Breakevens[0].Float64()
		if math.Abs(in.UnderlyingPrice-be)/math.Max(be, 1) > 0.25 {
			warnings = append(warnings, "price_beyond_max_risk_zone")
		}
	}
	return warnings
}
