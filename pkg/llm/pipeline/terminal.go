package pipeline

import (
	"context"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// ProviderTerminal is the chain leaf. It calls the provider adapter's unary
// or streaming method and passes the result through unchanged.
type ProviderTerminal struct{}

// NewProviderTerminal creates the standard terminal.
func NewProviderTerminal() *ProviderTerminal {
	return &ProviderTerminal{}
}

// Name implements Middleware.
func (t *ProviderTerminal) Name() string { return "terminal" }

// Terminal implements the Terminal marker.
func (t *ProviderTerminal) Terminal() bool { return true }

// Handle invokes the provider's unary send. The next continuation is unused.
func (t *ProviderTerminal) Handle(ctx context.Context, ec *llm.ExecutionContext, _ Handler) (*llm.Response, error) {
	return ec.Provider.Send(ctx, ec.Model, ec.Request, ec.Call)
}

// HandleStream invokes the provider's streaming send.
func (t *ProviderTerminal) HandleStream(ctx context.Context, ec *llm.ExecutionContext, _ StreamHandler) (<-chan llm.StreamEvent, error) {
	return ec.Provider.Stream(ctx, ec.Model, ec.Request, ec.Call)
}
