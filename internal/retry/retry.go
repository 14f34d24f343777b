// Package retry runs a function with a bounded number of re-attempts and a
// fixed delay between them.
package retry

import (
	"context"
	"time"
)

// Policy describes how a failing call is retried.
type Policy struct {
	// Retries is the number of attempts after the first. Zero means the call
	// runs exactly once.
	Retries int

	// Delay is the fixed wait before each re-attempt.
	Delay time.Duration

	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool

	// OnRetry, when set, is called before each wait with the attempt that
	// just failed (1-based).
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Attempts returns the maximum number of calls the policy allows.
func (p Policy) Attempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// Do calls fn until it succeeds, the policy is exhausted, the error is not
// retryable, or ctx is done. It returns the number of calls made and the
// last error. A cancelled context during a wait returns ctx.Err().
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) (int, error) {
	max := p.Attempts()
	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return attempt - 1, cerr
		}
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt >= max || (p.Retryable != nil && !p.Retryable(err)) {
			return attempt, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, p.Delay)
		}
		if werr := wait(ctx, p.Delay); werr != nil {
			return attempt, werr
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
