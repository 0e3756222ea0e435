package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"sentinel/internal/indicator"
	"sentinel/internal/metrics"
	"sentinel/internal/quote"
	"sentinel/internal/risk"
	"sentinel/internal/signal"
	"sentinel/internal/universe"
)

// Scanner fans out the Analyzer over a universe's symbols through a
// bounded concurrency pool.
type Scanner struct {
	analyzer     *Analyzer
	symbolTimeout time.Duration
}

// NewScanner builds a Scanner with the default per-symbol timeout.
func NewScanner(analyzer *Analyzer) *Scanner {
	return &Scanner{analyzer: analyzer, symbolTimeout: DefaultSymbolTimeout}
}

// WithSymbolTimeout overrides the per-symbol pipeline budget, clamped to
// [1s, MaxSymbolTimeout] so a slow provider can be given more room without
// letting one caller hang the whole fan-out.
func (sc *Scanner) WithSymbolTimeout(d time.Duration) *Scanner {
	if d > MaxSymbolTimeout {
		d = MaxSymbolTimeout
	}
	if d < time.Second {
		d = time.Second
	}
	sc.symbolTimeout = d
	return sc
}

// fanOut runs the Analyzer over every symbol in universeName with a
// semaphore of MaxConcurrency in-flight pipelines. A failing symbol is
// recorded in outcome.err and never aborts the others.
func (sc *Scanner) fanOut(ctx context.Context, universeName universe.Name, period quote.Period, useAI bool) ([]symbolOutcome, error) {
	symbols, err := universe.Symbols(universeName)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, MaxConcurrency)
	outcomes := make([]symbolOutcome, len(symbols))
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[i] = symbolOutcome{symbol: sym, err: ctx.Err()}
				return
			}
			metrics.ScannerInFlight.Inc()
			defer func() { <-sem; metrics.ScannerInFlight.Dec() }()

			symCtx, cancel := context.WithTimeout(ctx, sc.symbolTimeout)
			defer cancel()

			result, err := sc.analyzer.AnalyzeSymbol(symCtx, sym, period, useAI)
			if err != nil {
				sc.analyzer.logger.Warnf("scanner pipeline failed for %s: %v", sym, err)
			}
			outcomes[i] = symbolOutcome{symbol: sym, result: result, err: err}
		}(i, sym)
	}
	wg.Wait()

	return outcomes, nil
}

// Scan implements scan_trades: qualified trade plans only, sorted by
// quality (HIGH>MEDIUM>LOW) then R:R descending.
func (sc *Scanner) Scan(ctx context.Context, universeName universe.Name, maxResults int, period quote.Period) (ScanResult, error) {
	start := time.Now()
	outcomes, err := sc.fanOut(ctx, universeName, period, false)
	if err != nil {
		return ScanResult{}, err
	}

	var plans []Result
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			continue
		}
		if o.result.Plan.IsQualified() {
			plans = append(plans, o.result)
		}
	}

	sort.Slice(plans, func(i, j int) bool {
		return scanLess(plans[i], plans[j])
	})
	if maxResults > 0 && len(plans) > maxResults {
		plans = plans[:maxResults]
	}

	scanned := len(outcomes)
	qualRate := 0.0
	if scanned-failed > 0 {
		qualRate = float64(len(plans)) / float64(scanned-failed)
	}

	return ScanResult{
		Plans:             plans,
		DurationSeconds:   time.Since(start).Seconds(),
		QualificationRate: qualRate,
		ScannedSymbols:    scanned,
		FailedSymbols:     failed,
	}, nil
}

var qualityRank = map[risk.Quality]int{
	risk.QualityHigh:   3,
	risk.QualityMedium: 2,
	risk.QualityLow:    1,
}

func scanLess(a, b Result) bool {
	qa, qb := qualityRank[a.Plan.Quality], qualityRank[b.Plan.Quality]
	if qa != qb {
		return qa > qb
	}
	return a.Plan.RR.Ratio > b.Plan.RR.Ratio
}

// Screen implements screen_securities: every symbol matching criteria,
// sorted by avg_score descending.
func (sc *Scanner) Screen(ctx context.Context, universeName universe.Name, criteria Criteria, limit int, period quote.Period) (ScreenResult, error) {
	start := time.Now()
	outcomes, err := sc.fanOut(ctx, universeName, period, false)
	if err != nil {
		return ScreenResult{}, err
	}

	var matches []Result
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			continue
		}
		if matchesCriteria(o.result, criteria) {
			matches = append(matches, o.result)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].AvgScore > matches[j].AvgScore
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	scanned := len(outcomes)
	qualRate := 0.0
	if scanned-failed > 0 {
		qualRate = float64(len(matches)) / float64(scanned-failed)
	}

	return ScreenResult{
		Matches:           matches,
		DurationSeconds:   time.Since(start).Seconds(),
		QualificationRate: qualRate,
		ScannedSymbols:    scanned,
		FailedSymbols:     failed,
	}, nil
}

func matchesCriteria(r Result, c Criteria) bool {
	if c.RSI != nil && !c.RSI.matches(r.Snapshot.RSI14.Last()) {
		return false
	}
	if c.MinScore != nil && int(r.AvgScore) < *c.MinScore {
		return false
	}
	if c.MinBullish != nil {
		bullish := 0
		for _, s := range r.Signals {
			if s.Strength.IsBullish() {
				bullish++
			}
		}
		if bullish < *c.MinBullish {
			return false
		}
	}
	if c.ADX != nil && r.Snapshot.ADX.ADX.Last() < c.ADX.Min {
		return false
	}
	if c.VolumeSpike {
		hasSpike := false
		for _, s := range r.Signals {
			if s.Category == signal.CategoryVolume {
				hasSpike = true
				break
			}
		}
		if !hasSpike {
			return false
		}
	}
	if c.PriceAbove != nil {
		ma, ok := r.Snapshot.SMA[c.PriceAbove.Period]
		if !ok || indicator.IsUndefined(ma.Last()) || r.LastClose <= ma.Last() {
			return false
		}
	}
	if c.PriceBelow != nil {
		ma, ok := r.Snapshot.SMA[c.PriceBelow.Period]
		if !ok || indicator.IsUndefined(ma.Last()) || r.LastClose >= ma.Last() {
			return false
		}
	}
	if c.ChangePercent != nil && r.ChangePercent < *c.ChangePercent {
		return false
	}
	if c.SignalContains != "" && !signalNameContains(r.Signals, c.SignalContains) {
		return false
	}
	return true
}
