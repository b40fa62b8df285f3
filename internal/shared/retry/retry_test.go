package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/shared/errors"
)

// fastPolicy keeps test runtime negligible.
var fastPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.NewTransientError("upstream flake")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		attempts++
		return errors.NewAuthExpiredError("revoked")
	})
	assert.True(t, errors.IsAuthExpiredError(err))
	assert.Equal(t, 1, attempts, "auth errors must not be retried")
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		attempts++
		return errors.NewTransientError("still down")
	})
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 3, attempts)
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_HonorsRetryAfterHint(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.NewRateLimitedError("throttled", 50*time.Millisecond)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"the Retry-After hint overrides the computed backoff")
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.NewTransientError("flake")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ZeroPolicyFallsBackToDefault(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}
