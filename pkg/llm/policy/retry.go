package policy

import (
	"context"
	"math/rand"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Retry defaults.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 250 * time.Millisecond
	DefaultMaxDelay   = 4 * time.Second
)

// Retry repeats a failed action for retryable errors: rate limits,
// unavailable providers, and network I/O failures. Backoff is decorrelated
// jitter, delay = min(cap, uniform(base, previous*3)), with previous seeded
// at base so the first sleep draws from [base, 3*base). A rate-limit error
// carrying a provider-suggested delay uses that delay verbatim for its
// attempt.
type Retry struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a Retry policy.
type RetryOption func(*Retry)

// WithMaxRetries sets the retry cap; the action runs at most maxRetries+1
// times.
func WithMaxRetries(n int) RetryOption {
	return func(r *Retry) { r.maxRetries = n }
}

// WithBaseDelay sets the jitter window floor.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(r *Retry) { r.baseDelay = d }
}

// WithMaxDelay caps individual sleeps.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(r *Retry) { r.maxDelay = d }
}

// NewRetry creates a retry policy with the documented defaults.
func NewRetry(opts ...RetryOption) *Retry {
	r := &Retry{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute implements Policy.
func (r *Retry) Execute(ctx context.Context, action Action) (*llm.Response, error) {
	previous := r.baseDelay
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := action(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == r.maxRetries || !llm.IsRetryable(err) {
			break
		}

		delay := r.nextDelay(previous)
		if after, ok := llm.RetryAfterOf(err); ok && llm.IsKind(err, llm.KindRateLimited) {
			delay = after
		} else {
			previous = delay
		}

		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// nextDelay draws the decorrelated jitter sample.
func (r *Retry) nextDelay(previous time.Duration) time.Duration {
	upper := previous * 3
	if upper <= r.baseDelay {
		upper = r.baseDelay + 1
	}
	delay := r.baseDelay + time.Duration(rand.Int63n(int64(upper-r.baseDelay)))
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

// sleepCtx waits for d, aborting early on context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
