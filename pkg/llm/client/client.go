// Package client is the calling surface of the library. A Client binds one
// provider and model to a built middleware pipeline, seeds per-invocation
// state, and applies option defaults.
package client

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/cache"
	"github.com/haasonsaas/llmcomms/pkg/llm/pipeline"
	"github.com/haasonsaas/llmcomms/pkg/llm/policy"
)

// Client executes requests against one provider and model through a fixed
// pipeline. It is immutable after construction and safe for concurrent use.
type Client struct {
	provider llm.Provider
	model    llm.ProviderModel
	chain    *pipeline.Chain
	options  llm.ClientOptions
	policy   policy.Policy
}

type config struct {
	clientOptions llm.ClientOptions
	modelOptions  llm.ModelOptions
	logger        *slog.Logger
	cache         cache.ResponseCache
	cacheTTL      time.Duration
	custom        []pipeline.Middleware
	validator     []pipeline.ValidatorOption
	policy        policy.Policy
	chain         *pipeline.Chain
}

// Option configures a Client under construction.
type Option func(*config)

// WithClientOptions replaces the default client options. The value is
// snapshotted; later mutation by the caller has no effect.
func WithClientOptions(opts llm.ClientOptions) Option {
	return func(c *config) { c.clientOptions = opts }
}

// WithModelOptions passes model creation options to the provider.
func WithModelOptions(opts llm.ModelOptions) Option {
	return func(c *config) { c.modelOptions = opts }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCache sets the response cache and default TTL.
func WithCache(store cache.ResponseCache, ttl time.Duration) Option {
	return func(c *config) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithMiddleware appends custom middlewares to the default pipeline's custom
// slot.
func WithMiddleware(mws ...pipeline.Middleware) Option {
	return func(c *config) { c.custom = append(c.custom, mws...) }
}

// WithValidator passes options to the validator middleware.
func WithValidator(opts ...pipeline.ValidatorOption) Option {
	return func(c *config) { c.validator = append(c.validator, opts...) }
}

// WithPolicy wraps unary invocations in a resilience policy, e.g.
// policy.Compose(policy.NewRetry(), policy.NewTimeout(30*time.Second)).
func WithPolicy(p policy.Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithChain substitutes a fully custom pipeline, bypassing the default
// builder entirely.
func WithChain(chain *pipeline.Chain) Option {
	return func(c *config) { c.chain = chain }
}

// New creates a client for the given provider and model id.
func New(provider llm.Provider, modelID string, opts ...Option) (*Client, error) {
	cfg := &config{clientOptions: llm.DefaultClientOptions()}
	for _, opt := range opts {
		opt(cfg)
	}

	model, err := provider.CreateModel(modelID, cfg.modelOptions)
	if err != nil {
		return nil, err
	}

	chain := cfg.chain
	if chain == nil {
		chain, err = pipeline.NewDefaultChain(pipeline.DefaultOptions{
			Logger:    cfg.logger,
			Cache:     cfg.cache,
			CacheTTL:  cfg.cacheTTL,
			Custom:    cfg.custom,
			Validator: cfg.validator,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		provider: provider,
		model:    model,
		chain:    chain,
		options:  cfg.clientOptions,
		policy:   cfg.policy,
	}, nil
}

// Options returns the option snapshot the client was built with.
func (c *Client) Options() llm.ClientOptions { return c.options }

// prepare seeds the per-invocation state: a fresh request id and call
// context, and the default max output tokens when the request leaves it
// unset. The caller's request is never mutated.
func (c *Client) prepare(req *llm.Request, streaming bool) *llm.ExecutionContext {
	effective := req
	if req.MaxOutputTokens == 0 && c.options.DefaultMaxOutputTokens > 0 {
		effective = req.Clone()
		effective.MaxOutputTokens = c.options.DefaultMaxOutputTokens
	}
	return &llm.ExecutionContext{
		Provider:  c.provider,
		Model:     c.model,
		Request:   effective,
		Call:      llm.NewCallContext(""),
		Options:   c.options,
		Streaming: streaming,
	}
}

// Do executes one unary invocation and returns the response together with
// the call context carrying the middleware-published items.
func (c *Client) Do(ctx context.Context, req *llm.Request) (*llm.Response, *llm.CallContext, error) {
	ec := c.prepare(req, false)
	action := func(ctx context.Context) (*llm.Response, error) {
		return c.chain.Execute(ctx, ec)
	}

	var resp *llm.Response
	var err error
	if c.policy != nil {
		resp, err = c.policy.Execute(ctx, action)
	} else {
		resp, err = action(ctx)
	}
	if err != nil {
		return nil, ec.Call, err
	}
	return resp, ec.Call, nil
}

// Complete executes one unary invocation.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, _, err := c.Do(ctx, req)
	return resp, err
}

// DoStream executes one streaming invocation. The provider's streaming
// capability is checked before any per-call state is built; a provider that
// does not advertise streaming is rejected with a not_supported error.
func (c *Client) DoStream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, *llm.CallContext, error) {
	if !c.provider.Capabilities().SupportsStreaming {
		return nil, nil, llm.Errorf(llm.KindNotSupported,
			"provider %q does not support streaming", c.provider.Name())
	}

	ec := c.prepare(req, true)
	events, err := c.chain.ExecuteStream(ctx, ec)
	if err != nil {
		return nil, ec.Call, err
	}
	if c.options.CoalesceFinalStreamText {
		events = coalesceText(ctx, events)
	}
	return events, ec.Call, nil
}

// Stream executes one streaming invocation.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	events, _, err := c.DoStream(ctx, req)
	return events, err
}

// coalesceText suppresses individual delta events and delivers their
// concatenation as a single delta immediately before the terminal event. A
// canceled context releases the forwarding goroutine even when the consumer
// has stopped draining.
func coalesceText(ctx context.Context, in <-chan llm.StreamEvent) <-chan llm.StreamEvent {
	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)

		var text strings.Builder
		send := func(ev llm.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		flush := func() bool {
			if text.Len() == 0 {
				return true
			}
			ev := llm.Delta(text.String())
			text.Reset()
			return send(ev)
		}
		for ev := range in {
			if ev.Kind == llm.EventDelta && !ev.IsTerminal {
				text.WriteString(ev.TextDelta)
				continue
			}
			if ev.IsTerminal && !flush() {
				return
			}
			if !send(ev) {
				return
			}
		}
		// Stream ended without a terminal event; do not swallow the text.
		flush()
	}()
	return out
}
