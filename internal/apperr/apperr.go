// Package apperr holds the sentinel error taxonomy for the engine. Inner
// layers return these wrapped with fmt.Errorf("...: %w", err); only
// internal/gateway translates a taxonomy member to an HTTP status.
package apperr

import "errors"

var (
	// ErrInsufficientData signals fewer than bar.MinSeriesLength bars were
	// available for the requested symbol/period.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDataFetchError signals the upstream quote provider exhausted its
	// retry budget.
	ErrDataFetchError = errors.New("data fetch error")

	// ErrOptionDataUnavailable signals a requested strike/expiration pair
	// is not present in the option chain.
	ErrOptionDataUnavailable = errors.New("option data unavailable")

	// ErrValidation signals malformed caller-supplied parameters.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized signals a missing or unverifiable bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTierDenied signals the caller's tier does not permit the
	// requested tool or spread subtype.
	ErrTierDenied = errors.New("tier denied")

	// ErrQuotaExceeded signals the caller's daily quota for the tool has
	// been exhausted.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInternal is the catch-all for anything else; callers should log
	// it keyed by run_id and surface an opaque message.
	ErrInternal = errors.New("internal error")
)

// Is reports whether err (or anything it wraps) matches target, thin sugar
// over errors.Is kept local so callers only need this package's import.
func Is(err, target error) bool { return errors.Is(err, target) }
