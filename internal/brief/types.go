// Package brief implements BriefGenerator: a market-status + watchlist +
// sector + theme synthesis that never fails outright — any individual
// symbol fetch that errors is simply elided from the result.
package brief

import (
	"sentinel/internal/scanner"
)

// Sentiment is the overall market read derived from SPY's change and VIX.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// Theme is one of the derived market themes surfaced in a brief.
type Theme string

const (
	ThemeTechStrength   Theme = "TECH_STRENGTH"
	ThemeSectorRotation Theme = "SECTOR_ROTATION"
	ThemeRiskOn         Theme = "RISK_ON"
	ThemeRiskOff        Theme = "RISK_OFF"
)

// IndexQuote is a single index/benchmark's last-close snapshot.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	LastClose     float64 `json:"last_close"`
	ChangePercent float64 `json:"change_percent"`
}

// SectorPerformance is one sector ETF's change, used for the leaderboard
// that backs SECTOR_ROTATION and the XLK-in-top-3 TECH_STRENGTH check.
type SectorPerformance struct {
	Sector        string  `json:"sector"`
	ETF           string  `json:"etf"`
	ChangePercent float64 `json:"change_percent"`
}

// WatchlistEntry is one symbol's brief-scoped analysis: the full pipeline
// result narrowed to the fields a morning brief needs.
type WatchlistEntry struct {
	Symbol   string          `json:"symbol"`
	Action   string          `json:"action"`
	AvgScore float64         `json:"avg_score"`
	Plan     scanner.Result  `json:"-"`
}

// Brief is the single aggregated object a morning-brief request returns.
type Brief struct {
	Sentiment    Sentiment           `json:"sentiment"`
	Indices      []IndexQuote        `json:"indices"`
	VIX          float64             `json:"vix"`
	Sectors      []SectorPerformance `json:"sectors"`
	Watchlist    []WatchlistEntry    `json:"watchlist"`
	Themes       []Theme             `json:"themes"`
	MarketRegion string              `json:"market_region"`
}
