package config

import (
	"context"
	"fmt"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/cache"
	"github.com/haasonsaas/llmcomms/pkg/llm/client"
	"github.com/haasonsaas/llmcomms/pkg/llm/observability"
	"github.com/haasonsaas/llmcomms/pkg/llm/policy"
	"github.com/haasonsaas/llmcomms/pkg/llm/providers/azure"
	"github.com/haasonsaas/llmcomms/pkg/llm/providers/ollama"
	"github.com/haasonsaas/llmcomms/pkg/llm/providers/openai"
)

// NewProvider constructs the adapter described by a provider entry.
func NewProvider(name string, p ProviderConfig) (llm.Provider, error) {
	kind := p.Kind
	if kind == "" {
		kind = name
	}
	switch kind {
	case "openai":
		opts := []openai.Option{}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		if p.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(p.APIKey))
		}
		return openai.New(opts...), nil
	case "azure":
		opts := []azure.Option{
			azure.WithEndpoint(p.BaseURL),
			azure.WithAPIKey(p.APIKey),
		}
		if p.APIVersion != "" {
			opts = append(opts, azure.WithAPIVersion(p.APIVersion))
		}
		return azure.New(opts...), nil
	case "ollama":
		opts := []ollama.Option{}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithBaseURL(p.BaseURL))
		}
		return ollama.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}

// BuildClient assembles a ready client from the configuration: adapter,
// logger, cache, options, and resilience policies. An empty providerName
// selects the default provider; an empty modelID selects the provider's
// configured default model.
func BuildClient(cfg *Config, providerName, modelID string) (*client.Client, error) {
	name, pcfg, err := cfg.Provider(providerName)
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(name, pcfg)
	if err != nil {
		return nil, err
	}

	if modelID == "" {
		modelID = pcfg.DefaultModel
	}
	if modelID == "" {
		return nil, fmt.Errorf("provider %q: no model selected and no default_model configured", name)
	}

	opts := []client.Option{
		client.WithClientOptions(cfg.Options),
		client.WithLogger(observability.NewLogger(observability.LogConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})),
		client.WithCache(cache.NewMemory(), cfg.Cache.TTL),
	}

	if pol := buildPolicy(cfg.Resilience); pol != nil {
		opts = append(opts, client.WithPolicy(pol))
	}
	return client.New(provider, modelID, opts...)
}

// SetupTracing boots the global tracer provider from the tracing section and
// returns the shutdown function to flush on exit. An empty endpoint installs
// nothing and returns a no-op shutdown, so applications can call this
// unconditionally.
func SetupTracing(ctx context.Context, cfg *Config) (func(context.Context) error, error) {
	return observability.NewTracerProvider(ctx, observability.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Tracing.Environment,
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Insecure:     cfg.Tracing.Insecure,
	})
}

// buildPolicy assembles the retry-around-timeout composite, so each retry
// attempt gets a fresh deadline.
func buildPolicy(r ResilienceConfig) policy.Policy {
	var policies []policy.Policy
	if r.MaxRetries > 0 {
		retryOpts := []policy.RetryOption{policy.WithMaxRetries(r.MaxRetries)}
		if r.BaseDelay > 0 {
			retryOpts = append(retryOpts, policy.WithBaseDelay(r.BaseDelay))
		}
		if r.MaxDelay > 0 {
			retryOpts = append(retryOpts, policy.WithMaxDelay(r.MaxDelay))
		}
		policies = append(policies, policy.NewRetry(retryOpts...))
	}
	if r.Timeout > 0 {
		policies = append(policies, policy.NewTimeout(r.Timeout))
	}
	switch len(policies) {
	case 0:
		return nil
	case 1:
		return policies[0]
	default:
		return policy.Compose(policies...)
	}
}
