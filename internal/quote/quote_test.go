package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/logging"
)

func buildTestSeries(t *testing.T, symbol string, n int) bar.Series {
	t.Helper()
	bars := make([]bar.Bar, 0, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 0.1
		bars = append(bars, bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 1_000_000,
		})
	}
	s, err := bar.New(symbol, string(Period1d), bars)
	require.NoError(t, err)
	return s
}

type countingSource struct {
	inner Source
	calls int
}

func (c *countingSource) Fetch(ctx context.Context, symbol string, period Period) (bar.Series, error) {
	c.calls++
	return c.inner.Fetch(ctx, symbol, period)
}

func (c *countingSource) FetchChain(ctx context.Context, symbol string, expiration string) (OptionChain, error) {
	return c.inner.FetchChain(ctx, symbol, expiration)
}

func TestCachingSourceServesWithinTTLWithoutRefetch(t *testing.T) {
	fixture := NewFixtureSource()
	s := buildTestSeries(t, "AAPL", 60)
	fixture.Seed("AAPL", Period1d, s)

	counting := &countingSource{inner: fixture}
	cache := NewCachingSource(counting)
	fixedNow := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixedNow }

	_, err := cache.Fetch(context.Background(), "AAPL", Period1d)
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), "AAPL", Period1d)
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls, "second fetch within the same bar bucket should be served from cache")
}

func TestCachingSourceRefetchesAfterBucketAdvances(t *testing.T) {
	fixture := NewFixtureSource()
	s := buildTestSeries(t, "AAPL", 60)
	fixture.Seed("AAPL", Period1d, s)

	counting := &countingSource{inner: fixture}
	cache := NewCachingSource(counting)
	tick := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return tick }

	_, err := cache.Fetch(context.Background(), "AAPL", Period1d)
	require.NoError(t, err)

	tick = tick.Add(dailyTTL + time.Second)
	_, err = cache.Fetch(context.Background(), "AAPL", Period1d)
	require.NoError(t, err)

	assert.Equal(t, 2, counting.calls, "fetch after TTL expiry must hit the inner source again")
}

func TestRetryingSourceRetriesThenSucceeds(t *testing.T) {
	fixture := NewFixtureSource()
	s := buildTestSeries(t, "MSFT", 60)
	fixture.Seed("MSFT", Period1d, s)

	flaky := &flakySource{inner: fixture, failTimes: 2}
	backoffBase = time.Millisecond
	retrying := NewRetryingSource(flaky, logging.NewConsole("quote_test"))

	got, err := retrying.Fetch(context.Background(), "MSFT", Period1d)
	require.NoError(t, err)
	assert.Equal(t, s.Symbol, got.Symbol)
	assert.Equal(t, 3, flaky.attempts)
}

func TestRetryingSourceExhaustsRetries(t *testing.T) {
	fixture := NewFixtureSource()
	fixture.SeedError("ZZZZ", Period1d, errors.New("vendor down"))

	backoffBase = time.Millisecond
	retrying := NewRetryingSource(fixture, logging.NewConsole("quote_test"))

	_, err := retrying.Fetch(context.Background(), "ZZZZ", Period1d)
	require.Error(t, err)
}

type flakySource struct {
	inner     Source
	failTimes int
	attempts  int
}

func (f *flakySource) Fetch(ctx context.Context, symbol string, period Period) (bar.Series, error) {
	f.attempts++
	if f.attempts <= f.failTimes {
		return bar.Series{}, errors.New("transient vendor error")
	}
	return f.inner.Fetch(ctx, symbol, period)
}

func (f *flakySource) FetchChain(ctx context.Context, symbol string, expiration string) (OptionChain, error) {
	return f.inner.FetchChain(ctx, symbol, expiration)
}
