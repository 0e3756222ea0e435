package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sentinel/internal/apperr"
	"sentinel/internal/bar"
	"sentinel/internal/fibonacci"
	"sentinel/internal/portfolio"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/risk"
	"sentinel/internal/scanner"
	"sentinel/internal/signal"
	"sentinel/internal/spread"
	"sentinel/internal/tierpolicy"
	"sentinel/internal/universe"
)

const (
	defaultPeriod          = quote.Period1mo
	defaultFibonacciPeriod = quote.Period3mo
	defaultFibonacciWindow = 150
	defaultBriefPeriod     = quote.Period1d
	defaultScreenLimit     = 20
	defaultScanMaxResults  = 10
	maxCompareSymbols      = 10
)

// AnalyzeSecurityResult is the analyze_security tool's shaped result.
type AnalyzeSecurityResult struct {
	Symbol        string                 `json:"symbol"`
	LastClose     float64                `json:"last_close"`
	ChangePercent float64                `json:"change_percent"`
	Signals       []signal.RankedSignal  `json:"signals"`
	Plan          risk.TradePlan         `json:"plan"`
	AIExplanation *string                `json:"ai_explanation,omitempty"`
}

type analyzeSecurityParams struct {
	Symbol string      `json:"symbol"`
	Period quote.Period `json:"period"`
	UseAI  bool        `json:"use_ai"`
}

func dispatchAnalyzeSecurity(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p analyzeSecurityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if p.Symbol == "" {
		return nil, "", fmt.Errorf("gateway: analyze_security requires symbol: %w", apperr.ErrValidation)
	}
	if p.Period == "" {
		p.Period = defaultPeriod
	}
	useAI := p.UseAI && rule.AIAllowed

	res, err := gw.Analyzer.AnalyzeSymbol(ctx, p.Symbol, p.Period, useAI)
	if err != nil {
		return nil, "", err
	}

	out := AnalyzeSecurityResult{
		Symbol: res.Symbol, LastClose: res.LastClose, ChangePercent: res.ChangePercent,
		Signals: res.Signals, Plan: res.Plan,
	}
	if useAI {
		market := rankMarketContextFor(res)
		if explanation, explainErr := gw.Analyzer.Explain(ctx, res.Signals, market); explainErr == nil && explanation != "" {
			out.AIExplanation = &explanation
		}
	}
	return out, p.Symbol, nil
}

// rankMarketContextFor rebuilds the MarketContext a fresh AnalyzeSymbol
// call would have derived, so analyze_security can request an AI
// explanation without re-running the pipeline.
func rankMarketContextFor(res scanner.Result) rank.MarketContext {
	return rank.MarketContextFrom(res.Symbol, res.LastClose, res.LastVolume, res.Snapshot)
}

// AnalyzeFibonacciResult is the analyze_fibonacci tool's shaped result.
type AnalyzeFibonacciResult struct {
	Symbol    string            `json:"symbol"`
	LastClose float64           `json:"last_close"`
	Fibonacci fibonacci.Analysis `json:"fibonacci"`
}

type analyzeFibonacciParams struct {
	Symbol string       `json:"symbol"`
	Period quote.Period `json:"period"`
	Window int          `json:"window"`
}

func dispatchAnalyzeFibonacci(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p analyzeFibonacciParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if p.Symbol == "" {
		return nil, "", fmt.Errorf("gateway: analyze_fibonacci requires symbol: %w", apperr.ErrValidation)
	}
	if p.Period == "" {
		p.Period = defaultFibonacciPeriod
	}
	if p.Window == 0 {
		p.Window = defaultFibonacciWindow
	}
	// window is accepted for API compatibility but not threaded through:
	// the fibonacci engine always computes its fixed 20/50/100/200-bar
	// window set (fibonacci.Windows) rather than a single caller-chosen
	// lookback.

	// analyze_fibonacci runs the full Analyzer.AnalyzeSymbol pipeline and
	// returns only its fibonacci section.
	res, err := gw.Analyzer.AnalyzeSymbol(ctx, p.Symbol, p.Period, false)
	if err != nil {
		return nil, "", err
	}
	return AnalyzeFibonacciResult{Symbol: p.Symbol, LastClose: res.LastClose, Fibonacci: res.Fibonacci}, p.Symbol, nil
}

// GetTradePlanResult is the get_trade_plan tool's shaped result.
type GetTradePlanResult struct {
	Symbol string         `json:"symbol"`
	Plan   risk.TradePlan `json:"plan"`
}

type getTradePlanParams struct {
	Symbol string       `json:"symbol"`
	Period quote.Period `json:"period"`
}

func dispatchGetTradePlan(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p getTradePlanParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if p.Symbol == "" {
		return nil, "", fmt.Errorf("gateway: get_trade_plan requires symbol: %w", apperr.ErrValidation)
	}
	if p.Period == "" {
		p.Period = defaultPeriod
	}
	res, err := gw.Analyzer.AnalyzeSymbol(ctx, p.Symbol, p.Period, false)
	if err != nil {
		return nil, "", err
	}
	return GetTradePlanResult{Symbol: p.Symbol, Plan: res.Plan}, p.Symbol, nil
}

// CompareEntry is one symbol's row in compare_securities.
type CompareEntry struct {
	Symbol   string  `json:"symbol"`
	AvgScore float64 `json:"avg_score"`
	Bias     risk.Bias `json:"bias"`
	Quality  risk.Quality `json:"quality"`
}

// CompareSecuritiesResult is the compare_securities tool's shaped result.
type CompareSecuritiesResult struct {
	Metric  string         `json:"metric"`
	Entries []CompareEntry `json:"entries"`
}

type compareSecuritiesParams struct {
	Symbols []string     `json:"symbols"`
	Metric  string       `json:"metric"`
	Period  quote.Period `json:"period"`
}

func dispatchCompareSecurities(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p compareSecuritiesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if len(p.Symbols) == 0 || len(p.Symbols) > maxCompareSymbols {
		return nil, "", fmt.Errorf("gateway: compare_securities requires 1..%d symbols: %w", maxCompareSymbols, apperr.ErrValidation)
	}
	if p.Metric == "" {
		p.Metric = "signals"
	}
	if p.Period == "" {
		p.Period = defaultFibonacciPeriod
	}

	var entries []CompareEntry
	for _, sym := range p.Symbols {
		res, err := gw.Analyzer.AnalyzeSymbol(ctx, sym, p.Period, false)
		if err != nil {
			gw.logger.Warnf("gateway: compare_securities skipped %s: %v", sym, err)
			continue
		}
		entries = append(entries, CompareEntry{Symbol: sym, AvgScore: res.AvgScore, Bias: res.Plan.Bias, Quality: res.Plan.Quality})
	}
	return CompareSecuritiesResult{Metric: p.Metric, Entries: entries}, "", nil
}

type screenCriteriaDTO struct {
	RSI            *scanner.RSIRange  `json:"rsi,omitempty"`
	MinScore       *int               `json:"min_score,omitempty"`
	MinBullish     *int               `json:"min_bullish,omitempty"`
	ADX            *scanner.ADXFilter `json:"adx,omitempty"`
	VolumeSpike    bool               `json:"volume_spike,omitempty"`
	PriceAbove     *scanner.MAFilter  `json:"price_above,omitempty"`
	PriceBelow     *scanner.MAFilter  `json:"price_below,omitempty"`
	ChangePercent  *float64           `json:"change_percent,omitempty"`
	SignalContains string             `json:"signal_contains,omitempty"`
}

func (d screenCriteriaDTO) toCriteria() scanner.Criteria {
	return scanner.Criteria{
		RSI: d.RSI, MinScore: d.MinScore, MinBullish: d.MinBullish, ADX: d.ADX,
		VolumeSpike: d.VolumeSpike, PriceAbove: d.PriceAbove, PriceBelow: d.PriceBelow,
		ChangePercent: d.ChangePercent, SignalContains: d.SignalContains,
	}
}

type screenSecuritiesParams struct {
	Universe string            `json:"universe"`
	Criteria screenCriteriaDTO `json:"criteria"`
	Limit    int               `json:"limit"`
	Period   quote.Period      `json:"period"`
}

func dispatchScreenSecurities(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p screenSecuritiesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	universeName, err := universe.ParseName(p.Universe)
	if err != nil {
		return nil, "", err
	}
	if p.Limit <= 0 {
		p.Limit = defaultScreenLimit
	}
	if p.Period == "" {
		p.Period = defaultFibonacciPeriod
	}
	result, err := gw.Scanner.Screen(ctx, universeName, p.Criteria.toCriteria(), p.Limit, p.Period)
	if err != nil {
		return nil, "", err
	}
	return result, "", nil
}

type scanTradesParams struct {
	Universe   string       `json:"universe"`
	MaxResults int          `json:"max_results"`
	Period     quote.Period `json:"period"`
}

func dispatchScanTrades(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p scanTradesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	universeName, err := universe.ParseName(p.Universe)
	if err != nil {
		return nil, "", err
	}
	if p.MaxResults <= 0 {
		p.MaxResults = defaultScanMaxResults
	}
	if p.Period == "" {
		p.Period = defaultFibonacciPeriod
	}
	result, err := gw.Scanner.Scan(ctx, universeName, p.MaxResults, p.Period)
	if err != nil {
		return nil, "", err
	}
	return result, "", nil
}

type positionParam struct {
	Symbol     string  `json:"symbol"`
	Shares     float64 `json:"shares"`
	EntryPrice float64 `json:"entry_price"`
}

type portfolioRiskParams struct {
	Positions []positionParam `json:"positions"`
	Period    quote.Period    `json:"period"`
}

func dispatchPortfolioRisk(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p portfolioRiskParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if len(p.Positions) == 0 {
		return nil, "", fmt.Errorf("gateway: portfolio_risk requires at least one position: %w", apperr.ErrValidation)
	}
	if p.Period == "" {
		p.Period = defaultPeriod
	}

	positions := make([]portfolio.Position, len(p.Positions))
	for i, pos := range p.Positions {
		if pos.Symbol == "" || pos.Shares <= 0 {
			return nil, "", fmt.Errorf("gateway: portfolio_risk position %d invalid: %w", i, apperr.ErrValidation)
		}
		positions[i] = portfolio.Position{Symbol: pos.Symbol, Shares: pos.Shares, EntryPrice: pos.EntryPrice}
	}

	assessment, err := portfolio.Aggregate(ctx, positions, quoteSeriesFetcher{source: gw.Source}, sectorOf)
	if err != nil {
		return nil, "", err
	}
	return assessment, "", nil
}

// quoteSeriesFetcher adapts quote.Source to portfolio.SeriesFetcher.
type quoteSeriesFetcher struct {
	source quote.Source
}

func (f quoteSeriesFetcher) Series(ctx context.Context, symbol, period string) (bar.Series, error) {
	return f.source.Fetch(ctx, symbol, quote.Period(period))
}

func (f quoteSeriesFetcher) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	series, err := f.source.Fetch(ctx, symbol, quote.Period1d)
	if err != nil {
		return 0, err
	}
	return series.LastClose(), nil
}

type morningBriefParams struct {
	Watchlist    []string     `json:"watchlist"`
	MarketRegion string       `json:"market_region"`
	Period       quote.Period `json:"period"`
}

func dispatchMorningBrief(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p morningBriefParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if p.Period == "" {
		p.Period = defaultBriefPeriod
	}
	b := gw.Brief.Generate(ctx, p.Watchlist, p.MarketRegion, p.Period)
	return b, "", nil
}

// OptionsRiskAnalysisResult is the options_risk_analysis tool's shaped result.
type OptionsRiskAnalysisResult struct {
	spread.Result
	AIExplanation *string `json:"ai_explanation,omitempty"`
}

type optionsRiskAnalysisParams struct {
	Symbol          string  `json:"symbol"`
	Expiration       string  `json:"expiration"`
	SpreadType       string  `json:"spread_type"`
	ShortStrike      float64 `json:"short_strike"`
	LongStrike       float64 `json:"long_strike"`
	ShortPutStrike   float64 `json:"short_put_strike"`
	LongPutStrike    float64 `json:"long_put_strike"`
	ShortCallStrike  float64 `json:"short_call_strike"`
	LongCallStrike   float64 `json:"long_call_strike"`
	Contracts        int     `json:"contracts"`
	UseAI            bool    `json:"use_ai"`
}

func dispatchOptionsRiskAnalysis(ctx context.Context, gw *Gateway, ident Identity, rule tierpolicy.Rule, raw json.RawMessage) (interface{}, string, error) {
	var p optionsRiskAnalysisParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, "", err
	}
	if p.Symbol == "" || p.SpreadType == "" {
		return nil, "", fmt.Errorf("gateway: options_risk_analysis requires symbol and spread_type: %w", apperr.ErrValidation)
	}
	spreadType := spread.Type(p.SpreadType)
	if err := rule.AuthorizeSpread(spreadType); err != nil {
		return nil, "", err
	}
	if p.Contracts <= 0 {
		p.Contracts = 1
	}

	chain, err := gw.Source.FetchChain(ctx, p.Symbol, p.Expiration)
	if err != nil {
		return nil, "", err
	}

	isPutVertical := p.SpreadType == string(spread.TypePutCredit) || p.SpreadType == string(spread.TypePutDebit)
	shortKind, longKind := "call", "call"
	if isPutVertical {
		shortKind, longKind = "put", "put"
	}
	short := findLeg(chain, shortKind, p.ShortStrike)
	long := findLeg(chain, longKind, p.LongStrike)
	shortPut := findLeg(chain, "put", p.ShortPutStrike)
	longPut := findLeg(chain, "put", p.LongPutStrike)
	shortCall := findLeg(chain, "call", p.ShortCallStrike)
	longCall := findLeg(chain, "call", p.LongCallStrike)

	underlyingPrice := 0.0
	if series, pxErr := gw.Source.Fetch(ctx, p.Symbol, quote.Period1d); pxErr == nil && series.Len() > 0 {
		underlyingPrice = series.LastClose()
	}

	input := spread.Input{
		Symbol:          p.Symbol,
		Type:            spreadType,
		Contracts:       p.Contracts,
		DTE:             daysToExpiration(p.Expiration),
		UnderlyingPrice: underlyingPrice,
		IV:              short.IV,
		ShortStrike:     decimal.NewFromFloat(p.ShortStrike), LongStrike: decimal.NewFromFloat(p.LongStrike),
		ShortPremium: premiumOf(short), LongPremium: premiumOf(long),
		ShortPutStrike: decimal.NewFromFloat(p.ShortPutStrike), LongPutStrike: decimal.NewFromFloat(p.LongPutStrike),
		ShortCallStrike: decimal.NewFromFloat(p.ShortCallStrike), LongCallStrike: decimal.NewFromFloat(p.LongCallStrike),
		ShortPutPremium: premiumOf(shortPut), LongPutPremium: premiumOf(longPut),
		ShortCallPremium: premiumOf(shortCall), LongCallPremium: premiumOf(longCall),
		ShortGreeks: greeksOf(short), LongGreeks: greeksOf(long),
		ShortPutGreeks: greeksOf(shortPut), LongPutGreeks: greeksOf(longPut),
		ShortCallGreeks: greeksOf(shortCall), LongCallGreeks: greeksOf(longCall),
		ShortOpenInterest: short.OpenInterest, LongOpenInterest: long.OpenInterest,
	}

	res, err := spread.Analyze(input)
	if err != nil {
		return nil, "", err
	}
	out := OptionsRiskAnalysisResult{Result: res}
	if p.UseAI && rule.AIAllowed {
		if explanation, explainErr := gw.Analyzer.Explain(ctx, nil, rank.MarketContext{Symbol: p.Symbol, LastPrice: underlyingPrice}); explainErr == nil && explanation != "" {
			out.AIExplanation = &explanation
		}
	}
	return out, p.Symbol, nil
}

// findLeg resolves one chain leg by kind and strike; strike == 0 or no
// matching entry yields a zero-value OptionLeg rather than failing the
// whole request, since not every strategy uses every field.
func findLeg(chain quote.OptionChain, kind string, strike float64) quote.OptionLeg {
	if strike == 0 {
		return quote.OptionLeg{}
	}
	for _, leg := range chain.Legs {
		if leg.Kind == kind && leg.Strike == strike {
			return leg
		}
	}
	return quote.OptionLeg{}
}

// premiumOf prefers the last trade price and falls back to the bid/ask
// midpoint when a leg hasn't traded recently.
func premiumOf(leg quote.OptionLeg) decimal.Decimal {
	if leg.Last > 0 {
		return decimal.NewFromFloat(leg.Last)
	}
	return decimal.NewFromFloat((leg.Bid + leg.Ask) / 2)
}

func greeksOf(leg quote.OptionLeg) spread.Greeks {
	return spread.Greeks{Delta: leg.Delta, Gamma: leg.Gamma, Theta: leg.Theta, Vega: leg.Vega}
}

// daysToExpiration parses the RFC3339-date expiration param into a day
// count; an unparsable or empty expiration yields 0 rather than an error,
// since DTE only feeds the theta-decay warning, not a hard requirement.
func daysToExpiration(expiration string) int {
	exp, err := time.Parse("2006-01-02", expiration)
	if err != nil {
		return 0
	}
	days := int(time.Until(exp).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
