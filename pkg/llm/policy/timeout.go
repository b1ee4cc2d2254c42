package policy

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Timeout bounds each wrapped action with a deadline. Deadline expiry maps to
// a timeout-kind error; cancellation initiated by the caller surfaces as
// plain context cancellation, never as a timeout.
type Timeout struct {
	limit time.Duration
}

// NewTimeout creates a timeout policy.
func NewTimeout(limit time.Duration) *Timeout {
	return &Timeout{limit: limit}
}

// Execute implements Policy.
func (t *Timeout) Execute(ctx context.Context, action Action) (*llm.Response, error) {
	if t.limit <= 0 {
		return action(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()

	resp, err := action(attemptCtx)
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && attemptCtx.Err() == context.DeadlineExceeded {
		// Only map expiry of our own deadline; the caller's cancellation
		// takes precedence when both raced.
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		timeoutErr := llm.Errorf(llm.KindTimeout, "request exceeded the %s deadline", t.limit).WithCause(err)
		if le, ok := llm.AsError(err); ok && le.RequestID != "" {
			timeoutErr = timeoutErr.WithRequestID(le.RequestID)
		}
		return nil, timeoutErr
	}
	return nil, err
}
