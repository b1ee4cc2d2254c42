// Package pipeline implements the middleware chain a client invocation flows
// through, plus the built-in middlewares: tracing, redaction, logging,
// metrics, validation, and caching. A chain is an ordered list of middlewares
// ending in exactly one terminal, composed right to left into a single
// handler so each layer wraps its successor.
package pipeline

import (
	"context"
	"errors"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Handler is the unary continuation a middleware forwards to.
type Handler func(ctx context.Context, ec *llm.ExecutionContext) (*llm.Response, error)

// StreamHandler is the streaming continuation. The returned channel carries
// events in emission order and is closed after the terminal event.
type StreamHandler func(ctx context.Context, ec *llm.ExecutionContext) (<-chan llm.StreamEvent, error)

// Middleware observes, transforms, or short-circuits an invocation. A
// middleware either returns without calling next (short-circuit) or calls
// next at most once. On the streaming path it must preserve event order; it
// may inject synthetic events but never reorder the provider's.
type Middleware interface {
	// Name identifies the middleware in diagnostics.
	Name() string

	Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error)

	HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error)
}

// Terminal is a middleware that claims the chain leaf role. Its next
// continuation is always nil; it performs the actual provider call.
type Terminal interface {
	Middleware

	// Terminal is a marker; implementations return true.
	Terminal() bool
}

// ErrNoTerminal is returned by Build when no terminal was registered.
var ErrNoTerminal = errors.New("pipeline: no terminal middleware registered")

// Builder assembles a chain. Middlewares run in registration order, outermost
// first. A middleware that claims the terminal role replaces any prior
// terminal instead of joining the ordered list.
type Builder struct {
	middlewares []Middleware
	terminal    Terminal
}

// NewBuilder creates an empty chain builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Use appends a middleware. Terminals registered through Use replace the
// current terminal.
func (b *Builder) Use(mw Middleware) *Builder {
	if t, ok := mw.(Terminal); ok && t.Terminal() {
		b.terminal = t
		return b
	}
	b.middlewares = append(b.middlewares, mw)
	return b
}

// Build composes the registered middlewares around the terminal. It fails
// when no terminal is present.
func (b *Builder) Build() (*Chain, error) {
	if b.terminal == nil {
		return nil, ErrNoTerminal
	}

	terminal := b.terminal
	handler := func(ctx context.Context, ec *llm.ExecutionContext) (*llm.Response, error) {
		return terminal.Handle(ctx, ec, nil)
	}
	stream := func(ctx context.Context, ec *llm.ExecutionContext) (<-chan llm.StreamEvent, error) {
		return terminal.HandleStream(ctx, ec, nil)
	}

	for i := len(b.middlewares) - 1; i >= 0; i-- {
		mw := b.middlewares[i]
		innerHandler := handler
		innerStream := stream
		handler = func(ctx context.Context, ec *llm.ExecutionContext) (*llm.Response, error) {
			return mw.Handle(ctx, ec, innerHandler)
		}
		stream = func(ctx context.Context, ec *llm.ExecutionContext) (<-chan llm.StreamEvent, error) {
			return mw.HandleStream(ctx, ec, innerStream)
		}
	}

	return &Chain{handler: handler, stream: stream}, nil
}

// Chain is a built middleware pipeline. It is immutable and safe for
// concurrent invocations; all per-request state lives in the
// ExecutionContext.
type Chain struct {
	handler Handler
	stream  StreamHandler
}

// Execute runs one unary invocation through the chain.
func (c *Chain) Execute(ctx context.Context, ec *llm.ExecutionContext) (*llm.Response, error) {
	return c.handler(ctx, ec)
}

// ExecuteStream runs one streaming invocation through the chain.
func (c *Chain) ExecuteStream(ctx context.Context, ec *llm.ExecutionContext) (<-chan llm.StreamEvent, error) {
	return c.stream(ctx, ec)
}
