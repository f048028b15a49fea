package strava

import (
	"context"
	"time"

	"github.com/switchbacklabs/towers-tt/internal/errors"
)

// BackoffFunc returns the delay to wait after a failed attempt. The
// attempt index is 1-based.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff returns a backoff that grows by step per attempt: after
// attempt 1 wait 1×step, after attempt 2 wait 2×step, and so on.
func LinearBackoff(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// RetryPolicy wraps transient-failure retry behavior so transport
// resilience can be configured and tested independently of resolution
// logic.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// DefaultRetryPolicy retries each call up to 3 attempts with linearly
// increasing backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Second),
	}
}

// retryable reports whether an error is worth another attempt. Credential
// errors are never retried: they require external re-authentication.
// Admission-style outcomes (not found, validation) won't change on retry
// either.
func retryable(err error) bool {
	switch errors.CategoryOf(err) {
	case errors.CategoryTokenExpired,
		errors.CategoryNotFound,
		errors.CategoryValidation,
		errors.CategoryConfiguration,
		errors.CategoryParsing:
		return false
	}
	return true
}

// Do runs op until it succeeds, the attempts are exhausted, or a
// non-retryable error occurs.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < p.MaxAttempts {
			select {
			case <-time.After(p.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
