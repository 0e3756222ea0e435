package quote

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/apperr"
	"sentinel/internal/bar"
	"sentinel/internal/logging"
)

// maxRetries bounds how many times RetryingSource retries after the first
// attempt (maxRetries+1 attempts in all), with an exponential backoff
// between attempts, so a transient upstream failure
// doesn't surface as a hard error on the first hiccup.
const maxRetries = 3

var backoffBase = 200 * time.Millisecond

// RetryingSource wraps a Source so transient upstream failures are retried
// before surfacing DataFetchError to the caller; callers never see a
// transient failure unless the full retry budget is exhausted.
type RetryingSource struct {
	inner  Source
	logger logging.Logger
}

// NewRetryingSource builds a RetryingSource around inner.
func NewRetryingSource(inner Source, logger logging.Logger) *RetryingSource {
	return &RetryingSource{inner: inner, logger: logger}
}

func (r *RetryingSource) Fetch(ctx context.Context, symbol string, period Period) (bar.Series, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sleep := backoffBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return bar.Series{}, ctx.Err()
			}
		}
		series, err := r.inner.Fetch(ctx, symbol, period)
		if err == nil {
			return series, nil
		}
		lastErr = err
		r.logger.Warnf("quote fetch %s/%s attempt %d/%d failed: %v", symbol, period, attempt+1, maxRetries+1, err)
	}
	return bar.Series{}, fmt.Errorf("quote fetch %s/%s exhausted %d retries: %w: %v", symbol, period, maxRetries, apperr.ErrDataFetchError, lastErr)
}

func (r *RetryingSource) FetchChain(ctx context.Context, symbol string, expiration string) (OptionChain, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sleep := backoffBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return OptionChain{}, ctx.Err()
			}
		}
		chain, err := r.inner.FetchChain(ctx, symbol, expiration)
		if err == nil {
			return chain, nil
		}
		lastErr = err
		r.logger.Warnf("quote fetch_chain %s attempt %d/%d failed: %v", symbol, attempt+1, maxRetries+1, err)
	}
	return OptionChain{}, fmt.Errorf("quote fetch_chain %s exhausted %d retries: %w: %v", symbol, maxRetries, apperr.ErrDataFetchError, lastErr)
}
