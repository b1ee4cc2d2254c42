// Package openai implements the provider adapter for OpenAI-style chat
// completion endpoints, including self-hosted servers that speak the same
// protocol.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/providers"
	"github.com/haasonsaas/llmcomms/pkg/llm/transport"
)

// DefaultBaseURL is the hosted OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider is the OpenAI-style adapter.
type Provider struct {
	baseURL   string
	apiKey    string
	transport transport.Transport

	models sync.Map
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the adapter at a compatible server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithAPIKey sets the bearer credential.
func WithAPIKey(key string) Option {
	return func(p *Provider) { p.apiKey = key }
}

// WithTransport substitutes the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(p *Provider) { p.transport = t }
}

// New creates the adapter.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:   DefaultBaseURL,
		transport: transport.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsStreaming: true,
		SupportsJSONMode:  true,
		SupportsTools:     true,
		SupportsVision:    true,
	}
}

// CreateModel implements llm.Provider. Handles are memoized so repeated
// resolution of one id is cheap and yields equivalent handles.
func (p *Provider) CreateModel(id string, opts llm.ModelOptions) (llm.ProviderModel, error) {
	if id == "" {
		return llm.ProviderModel{}, llm.NewError(llm.KindValidation, "model id must not be empty")
	}
	key := fmt.Sprintf("%s|%s|%d|%d", id, opts.Format, opts.MaxInputTokens, opts.MaxOutputTokens)
	if cached, ok := p.models.Load(key); ok {
		return cached.(llm.ProviderModel), nil
	}

	format := opts.Format
	if format == "" {
		format = llm.FormatChat
	}
	model := llm.ProviderModel{
		ID:              id,
		Format:          format,
		MaxInputTokens:  opts.MaxInputTokens,
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	p.models.Store(key, model)
	return model, nil
}

func (p *Provider) headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
	}
	if p.apiKey != "" {
		h["Authorization"] = "Bearer " + p.apiKey
	}
	return h
}

func (p *Provider) exchange(ctx context.Context, body map[string]any, call *llm.CallContext) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.Errorf(llm.KindValidation, "encode request body: %v", err).
			WithRequestID(call.RequestID()).WithCause(err)
	}

	resp, err := p.transport.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     p.baseURL + "/chat/completions",
		Headers: p.headers(),
		Body:    payload,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providers.TranslateStatus(resp.StatusCode, resp.Body, resp.Headers, call.RequestID())
	}
	return resp.Body, nil
}

// Send implements llm.Provider.
func (p *Provider) Send(ctx context.Context, model llm.ProviderModel, req *llm.Request, call *llm.CallContext) (*llm.Response, error) {
	body := providers.ChatBody(model.ID, req, false)
	providers.ApplyHints(body, req.ProviderHints, p.Name())

	data, err := p.exchange(ctx, body, call)
	if err != nil {
		return nil, err
	}
	return providers.ParseChatCompletion(data, call.RequestID())
}

// Stream implements llm.Provider. The transport delivers the SSE body whole;
// frames are parsed here and replayed in arrival order.
func (p *Provider) Stream(ctx context.Context, model llm.ProviderModel, req *llm.Request, call *llm.CallContext) (<-chan llm.StreamEvent, error) {
	body := providers.ChatBody(model.ID, req, true)
	body["stream_options"] = map[string]any{"include_usage": true}
	providers.ApplyHints(body, req.ProviderHints, p.Name())

	data, err := p.exchange(ctx, body, call)
	if err != nil {
		return nil, err
	}
	return providers.EmitEvents(providers.ParseChatStream(data, call.RequestID())), nil
}
