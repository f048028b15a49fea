package strava

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchbacklabs/towers-tt/internal/errors"
)

func TestLinearBackoff(t *testing.T) {
	backoff := LinearBackoff(time.Second)

	assert.Equal(t, 1*time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 3*time.Second, backoff(3))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.Backoff(2))
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return 0 }}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.Newf("flaky").Category(errors.CategoryNetwork).Build()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return 0 }}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.Newf("still down").Category(errors.CategoryNetwork).Build()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableCategories(t *testing.T) {
	t.Parallel()

	fatal := []errors.ErrorCategory{
		errors.CategoryTokenExpired,
		errors.CategoryNotFound,
		errors.CategoryValidation,
		errors.CategoryConfiguration,
		errors.CategoryParsing,
	}
	for _, category := range fatal {
		category := category
		t.Run(string(category), func(t *testing.T) {
			t.Parallel()
			p := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return 0 }}

			calls := 0
			err := p.Do(context.Background(), func() error {
				calls++
				return errors.Newf("fatal").Category(category).Build()
			})

			require.Error(t, err)
			assert.Equal(t, 1, calls, "category %s must not be retried", category)
		})
	}
}

func TestDo_RateLimitIsRetried(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, Backoff: func(int) time.Duration { return 0 }}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.Newf("slow down").Category(errors.CategoryRateLimit).Build()
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancellationStopsRetrying(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Backoff: LinearBackoff(time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		calls++
		return errors.Newf("down").Category(errors.CategoryNetwork).Build()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, context.Canceled))
}
