package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/bar"
	"sentinel/internal/metrics"
)

const (
	intradayTTL = 60 * time.Second
	dailyTTL    = 300 * time.Second
)

type cacheEntry struct {
	series    bar.Series
	expiresAt time.Time
}

// keyLock is a singleflight-style per-key mutex: CachingSource uses it to
// guarantee at-most-one concurrent upstream fetch per (symbol, period,
// bar-epoch) fingerprint, so concurrent callers for the same key coalesce
// onto a single upstream request instead of stampeding it.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLock) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// CachingSource decorates a Source with a TTL cache keyed by
// (symbol, period, current_bar_bucket); intraday entries expire at 60s,
// daily-or-slower at 300s, matched to how often each timeframe actually
// produces a new bar.
type CachingSource struct {
	inner   Source
	mu      sync.RWMutex
	entries map[string]cacheEntry
	locks   *keyLock
	now     func() time.Time
}

// NewCachingSource builds a CachingSource around inner.
func NewCachingSource(inner Source) *CachingSource {
	return &CachingSource{
		inner:   inner,
		entries: make(map[string]cacheEntry),
		locks:   newKeyLock(),
		now:     time.Now,
	}
}

func barBucket(period Period, now time.Time) string {
	if period.IsIntraday() {
		return fmt.Sprintf("%d", now.Unix()/int64(intradayTTL.Seconds()))
	}
	return fmt.Sprintf("%d", now.Unix()/int64(dailyTTL.Seconds()))
}

func (c *CachingSource) cacheKey(symbol string, period Period) string {
	return symbol + "|" + string(period) + "|" + barBucket(period, c.now())
}

func (c *CachingSource) Fetch(ctx context.Context, symbol string, period Period) (bar.Series, error) {
	key := c.cacheKey(symbol, period)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		metrics.RecordQuoteCacheResult(string(period), true)
		return entry.series, nil
	}

	unlock := c.locks.lock(key)
	defer unlock()

	// Re-check after acquiring the per-key lock: another goroutine may have
	// populated the cache while this one waited.
	c.mu.RLock()
	entry, ok = c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		metrics.RecordQuoteCacheResult(string(period), true)
		return entry.series, nil
	}

	metrics.RecordQuoteCacheResult(string(period), false)
	series, err := c.inner.Fetch(ctx, symbol, period)
	if err != nil {
		return bar.Series{}, err
	}

	ttl := dailyTTL
	if period.IsIntraday() {
		ttl = intradayTTL
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{series: series, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	return series, nil
}

func (c *CachingSource) FetchChain(ctx context.Context, symbol string, expiration string) (OptionChain, error) {
	// Option chains are not bar-bucketed; pass through directly. A chain
	// cache would need its own TTL discipline, not yet implemented.
	return c.inner.FetchChain(ctx, symbol, expiration)
}
