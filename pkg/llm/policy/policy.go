// Package policy provides resilience wrappers for unary invocations:
// deadline enforcement, retry with decorrelated jitter, and composition.
package policy

import (
	"context"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Action is one attemptable unit of work, typically a full pipeline
// invocation.
type Action func(ctx context.Context) (*llm.Response, error)

// Policy wraps an action with a resilience behavior.
type Policy interface {
	Execute(ctx context.Context, action Action) (*llm.Response, error)
}

// Composite chains policies outer-first, so Compose(retry, timeout) gives
// every retry attempt a fresh timeout.
type Composite struct {
	policies []Policy
}

// Compose builds a composite from the given policies.
func Compose(policies ...Policy) *Composite {
	return &Composite{policies: policies}
}

// Execute implements Policy.
func (c *Composite) Execute(ctx context.Context, action Action) (*llm.Response, error) {
	wrapped := action
	for i := len(c.policies) - 1; i >= 0; i-- {
		p := c.policies[i]
		inner := wrapped
		wrapped = func(ctx context.Context) (*llm.Response, error) {
			return p.Execute(ctx, inner)
		}
	}
	return wrapped(ctx)
}
