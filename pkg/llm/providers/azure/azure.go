// Package azure implements the provider adapter for Azure OpenAI. The wire
// protocol is OpenAI's; the differences are the deployment-scoped URL, the
// api-key header, and the forwarded client request id.
package azure

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

// DefaultAPIVersion is used when no explicit api-version is configured.
const DefaultAPIVersion = "2024-06-01"

// Provider is the Azure OpenAI adapter. Model ids name deployments.
type Provider struct {
	endpoint   string
	apiKey     string
	apiVersion string
	transport  transport.Transport

	models sync.Map
}

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint sets the resource endpoint, e.g.
// https://myresource.openai.azure.com.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = strings.TrimRight(endpoint, "/") }
}

// WithAPIKey sets the api-key credential.
func WithAPIKey(key string) Option {
	return func(p *Provider) { p.apiKey = key }
}

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(version string) Option {
	return func(p *Provider) { p.apiVersion = version }
}

// WithTransport substitutes the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(p *Provider) { p.transport = t }
}

// New creates the adapter.
func New(opts ...Option) *Provider {
	p := &Provider{
		apiVersion: DefaultAPIVersion,
		transport:  transport.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "azure" }

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsStreaming: true,
		SupportsJSONMode:  true,
		SupportsTools:     true,
		SupportsVision:    true,
	}
}

// CreateModel implements llm.Provider. The id is the deployment name.
func (p *Provider) CreateModel(id string, opts llm.ModelOptions) (llm.ProviderModel, error) {
	if id == "" {
		return llm.ProviderModel{}, llm.NewError(llm.KindValidation, "deployment name must not be empty")
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

func (p *Provider) url(deployment string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, deployment, p.apiVersion)
}

func (p *Provider) exchange(ctx context.Context, deployment string, body map[string]any, call *llm.CallContext) ([]byte, error) {
	// Azure scopes the model by URL path; a model field in the body is
	// rejected by some api versions.
	delete(body, "model")

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.Errorf(llm.KindValidation, "encode request body: %v", err).
			WithRequestID(call.RequestID()).WithCause(err)
	}

	resp, err := p.transport.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    p.url(deployment),
		Headers: map[string]string{
			"Content-Type":           "application/json",
			"api-key":                p.apiKey,
			"x-ms-client-request-id": call.RequestID(),
		},
		Body: payload,
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

	data, err := p.exchange(ctx, model.ID, body, call)
	if err != nil {
		return nil, err
	}
	return providers.ParseChatCompletion(data, call.RequestID())
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, model llm.ProviderModel, req *llm.Request, call *llm.CallContext) (<-chan llm.StreamEvent, error) {
	body := providers.ChatBody(model.ID, req, true)
	body["stream_options"] = map[string]any{"include_usage": true}
	providers.ApplyHints(body, req.ProviderHints, p.Name())

	data, err := p.exchange(ctx, model.ID, body, call)
	if err != nil {
		return nil, err
	}
	return providers.EmitEvents(providers.ParseChatStream(data, call.RequestID())), nil
}
