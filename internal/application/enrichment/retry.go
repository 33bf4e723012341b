package enrichment

import (
	"context"
	"time"

	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often an upstream call is repeated.
// Transport failures, 5xx and 429 are retried with jittered exponential backoff;
// any other error ends the attempts at once.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy tries three times, starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// doWithRetry runs fn until it succeeds, fails definitively or the policy is exhausted.
// It returns the last error of fn.
func doWithRetry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil && erp.IsRetryable(err) {
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}
