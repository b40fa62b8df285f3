// Package retry implements bounded retry with exponential backoff and jitter
// for transient downstream failures.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/resona-io/resona/internal/shared/errors"
)

// Policy controls the retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
}

// DefaultPolicy matches the orchestrator-wide policy for transient errors:
// 3 attempts, 100ms base, 2s cap.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

// rateLimitDelayCap bounds how long a Retry-After hint may stall a handler.
const rateLimitDelayCap = 60 * time.Second

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// is exhausted. A Retry-After hint on a rate-limited error overrides the
// computed backoff, capped at 60s. The context deadline is honored between
// attempts.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy
	}

	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(policy, attempt)
			if hint := errors.RetryAfterHint(err); hint > 0 {
				delay = hint
				if delay > rateLimitDelayCap {
					delay = rateLimitDelayCap
				}
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !errors.IsRetryable(err) {
			return err
		}
	}
	return err
}

// backoff computes the full-jitter exponential delay for the given attempt.
func backoff(policy Policy, attempt int) time.Duration {
	max := policy.BaseDelay << uint(attempt-1)
	if max > policy.MaxDelay {
		max = policy.MaxDelay
	}
	if max <= 0 {
		return policy.BaseDelay
	}
	return time.Duration(rand.Int63n(int64(max)) + 1)
}
