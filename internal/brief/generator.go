package brief

import (
	"context"
	"sort"

	"sentinel/internal/bar"
	"sentinel/internal/logging"
	"sentinel/internal/quote"
	"sentinel/internal/risk"
	"sentinel/internal/scanner"
	"sentinel/internal/universe"
)

// benchmarkSymbols are the broad-market index ETFs used for the brief's
// market-status section.
var benchmarkSymbols = []string{"SPY", "QQQ", "DIA"}

// vixSymbol is fetched like any other quote symbol; a production
// deployment wires a real VIX-tracking source behind quote.Source.
const vixSymbol = "^VIX"

// defaultWatchlistSize caps the default watchlist at the top names by
// market cap; this engine has no live market-cap feed, so the default
// watchlist is the first defaultWatchlistSize symbols of the sp500
// universe table, which is itself ordered roughly by market cap.
const defaultWatchlistSize = 10

const (
	sentimentChangeThreshold = 0.5
	sentimentVIXBull         = 15.0
	sentimentVIXBear         = 20.0
	sectorRotationGapPct     = 2.0
	techStrengthMinBuys      = 3
)

// techSector is the sector name gating the TECH_STRENGTH theme.
const techSector = "Technology"

// Generator produces a Brief. source is used directly for index/VIX/sector
// last-bar reads; analyzer runs the full pipeline on the watchlist.
type Generator struct {
	source   quote.Source
	analyzer *scanner.Analyzer
	logger   logging.Logger
}

// NewGenerator builds a Generator.
func NewGenerator(source quote.Source, analyzer *scanner.Analyzer, logger logging.Logger) *Generator {
	return &Generator{source: source, analyzer: analyzer, logger: logger}
}

// Generate builds a Brief for watchlist (or the default top-10 sp500
// symbols when empty). It never returns an error: any symbol whose fetch
// or pipeline fails is simply elided from the result.
func (g *Generator) Generate(ctx context.Context, watchlist []string, marketRegion string, period quote.Period) Brief {
	if marketRegion == "" {
		marketRegion = "US"
	}
	if len(watchlist) == 0 {
		watchlist = defaultWatchlist()
	}

	indices := g.fetchIndices(ctx, period)
	vix := g.fetchVIX(ctx, period)
	sectors := g.fetchSectorPerformance(ctx, period)
	entries := g.runWatchlist(ctx, watchlist, period)

	spyChange := 0.0
	for _, idx := range indices {
		if idx.Symbol == "SPY" {
			spyChange = idx.ChangePercent
		}
	}
	sentiment := classifySentiment(spyChange, vix)
	themes := deriveThemes(entries, sectors, vix)

	return Brief{
		Sentiment:    sentiment,
		Indices:      indices,
		VIX:          vix,
		Sectors:      sectors,
		Watchlist:    entries,
		Themes:       themes,
		MarketRegion: marketRegion,
	}
}

func defaultWatchlist() []string {
	syms, err := universe.Symbols(universe.SP500)
	if err != nil || len(syms) == 0 {
		return nil
	}
	if len(syms) > defaultWatchlistSize {
		syms = syms[:defaultWatchlistSize]
	}
	return syms
}

func (g *Generator) fetchIndices(ctx context.Context, period quote.Period) []IndexQuote {
	var out []IndexQuote
	for _, sym := range benchmarkSymbols {
		series, err := g.source.Fetch(ctx, sym, period)
		if err != nil {
			g.logger.Warnf("brief: index fetch %s failed: %v", sym, err)
			continue
		}
		out = append(out, IndexQuote{Symbol: sym, LastClose: series.LastClose(), ChangePercent: seriesChangePercent(series)})
	}
	return out
}

func (g *Generator) fetchVIX(ctx context.Context, period quote.Period) float64 {
	series, err := g.source.Fetch(ctx, vixSymbol, period)
	if err != nil {
		g.logger.Warnf("brief: VIX fetch failed: %v", err)
		return 0
	}
	return series.LastClose()
}

func (g *Generator) fetchSectorPerformance(ctx context.Context, period quote.Period) []SectorPerformance {
	etfs, err := universe.Symbols(universe.ETFSector)
	if err != nil {
		return nil
	}
	var out []SectorPerformance
	for _, etf := range etfs {
		series, err := g.source.Fetch(ctx, etf, period)
		if err != nil {
			g.logger.Warnf("brief: sector ETF fetch %s failed: %v", etf, err)
			continue
		}
		out = append(out, SectorPerformance{
			Sector:        universe.SectorOf(etf),
			ETF:           etf,
			ChangePercent: seriesChangePercent(series),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangePercent > out[j].ChangePercent })
	return out
}

func (g *Generator) runWatchlist(ctx context.Context, watchlist []string, period quote.Period) []WatchlistEntry {
	var out []WatchlistEntry
	for _, sym := range watchlist {
		result, err := g.analyzer.AnalyzeSymbol(ctx, sym, period, false)
		if err != nil {
			g.logger.Warnf("brief: watchlist pipeline failed for %s: %v", sym, err)
			continue
		}
		out = append(out, WatchlistEntry{
			Symbol:   sym,
			Action:   deriveAction(result.Plan),
			AvgScore: result.AvgScore,
			Plan:     result,
		})
	}
	return out
}

// deriveAction maps a qualified TradePlan's bias to a BUY/SELL/HOLD action,
// the deterministic equivalent of the LLMScorer's Action field for symbols
// analyzed without AI re-ranking.
func deriveAction(plan risk.TradePlan) string {
	if !plan.IsQualified() {
		return "HOLD"
	}
	switch plan.Bias {
	case risk.BiasBullish:
		return "BUY"
	case risk.BiasBearish:
		return "SELL"
	default:
		return "HOLD"
	}
}

func classifySentiment(spyChangePercent, vix float64) Sentiment {
	if spyChangePercent > sentimentChangeThreshold && vix < sentimentVIXBull {
		return SentimentBullish
	}
	if spyChangePercent < -sentimentChangeThreshold && vix > sentimentVIXBear {
		return SentimentBearish
	}
	return SentimentNeutral
}

func deriveThemes(entries []WatchlistEntry, sectors []SectorPerformance, vix float64) []Theme {
	var themes []Theme

	buys := 0
	for _, e := range entries {
		if e.Action == "BUY" && universe.SectorOf(e.Symbol) == techSector {
			buys++
		}
	}
	xlkTop3 := false
	for i, s := range sectors {
		if i >= 3 {
			break
		}
		if s.ETF == "XLK" {
			xlkTop3 = true
		}
	}
	if buys >= techStrengthMinBuys && xlkTop3 {
		themes = append(themes, ThemeTechStrength)
	}

	if len(sectors) >= 2 {
		gap := sectors[0].ChangePercent - sectors[len(sectors)-1].ChangePercent
		if gap > sectorRotationGapPct {
			themes = append(themes, ThemeSectorRotation)
		}
	}

	if vix < sentimentVIXBull {
		themes = append(themes, ThemeRiskOn)
	} else if vix > sentimentVIXBear {
		themes = append(themes, ThemeRiskOff)
	}

	return themes
}

// seriesChangePercent is the last bar's close-over-previous-close change,
// the same formula internal/scanner uses for the screener's
// change_percent criteria key.
func seriesChangePercent(s bar.Series) float64 {
	if s.Len() < 2 {
		return 0
	}
	prev := s.Bars[len(s.Bars)-2].Close
	if prev == 0 {
		return 0
	}
	return (s.LastClose() - prev) / prev * 100
}
