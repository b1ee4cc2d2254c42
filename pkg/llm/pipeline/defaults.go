package pipeline

import (
	"log/slog"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm/cache"
)

// DefaultOptions configures NewDefaultChain.
type DefaultOptions struct {
	// Logger backs the logging middleware. Nil uses slog.Default.
	Logger *slog.Logger

	// Cache backs the cache middleware. Nil uses a fresh in-memory cache.
	Cache cache.ResponseCache

	// CacheTTL overrides the default entry lifetime.
	CacheTTL time.Duration

	// Custom middlewares are inserted between metrics and the cache, in
	// order.
	Custom []Middleware

	// Validator options, e.g. WithSchemaValidation.
	Validator []ValidatorOption
}

// NewDefaultChain builds the standard pipeline. Order, outermost first:
// tracing, redaction, logging, metrics, custom middlewares, cache, validator,
// terminal. Tracing wraps everything; redaction runs before anything can log
// content; the validator sits inside the cache so responses are validated
// before they are stored and a rejected response is never cached.
func NewDefaultChain(opts DefaultOptions) (*Chain, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	store := opts.Cache
	if store == nil {
		store = cache.NewMemory()
	}

	b := NewBuilder().
		Use(NewTracing()).
		Use(NewRedaction()).
		Use(NewLogging(opts.Logger)).
		Use(metrics)
	for _, mw := range opts.Custom {
		b.Use(mw)
	}
	b.Use(NewCache(store, opts.CacheTTL)).
		Use(NewValidator(opts.Validator...)).
		Use(NewProviderTerminal())
	return b.Build()
}
