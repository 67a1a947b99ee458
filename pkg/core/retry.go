package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryPolicy bounds a probe loop by attempt count, inter-attempt interval
// and an optional overall deadline. Timeout zero means no overall cap.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Timeout     time.Duration
}

// Run invokes op until it succeeds or the policy is exhausted, sleeping
// Interval between attempts.
//
// A failing attempt is consulted against tolerate: a tolerated error counts
// as "not yet satisfied" and the loop continues; a non-tolerated error aborts
// the loop immediately and is returned as-is. A nil tolerate tolerates every
// error. Exhausting the budget returns a timeout-category Error carrying the
// last observed failure.
func (p RetryPolicy) Run(ctx context.Context, op func() error, tolerate func(error) bool) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var last error
	var aborted bool
	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		last = err
		if tolerate != nil && !tolerate(err) {
			aborted = true
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(p.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(attempt, policy); err != nil {
		if aborted {
			return last
		}
		timeout := NewError(ErrCategoryTimeout, "retry_exhausted", "retry budget exhausted").WithCause(last)
		return timeout.WithDetails(map[string]interface{}{
			"max_attempts": p.MaxAttempts,
			"interval":     p.Interval.String(),
		})
	}
	return nil
}
