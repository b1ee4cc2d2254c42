// Package ollama implements the provider adapter for a local Ollama server.
// Streaming responses are newline-delimited JSON objects terminated by one
// with done=true.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/providers"
	"github.com/haasonsaas/llmcomms/pkg/llm/transport"
)

// DefaultBaseURL is the local Ollama daemon.
const DefaultBaseURL = "http://localhost:11434"

// Provider is the Ollama adapter.
type Provider struct {
	baseURL   string
	transport transport.Transport

	models sync.Map
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the adapter at a non-default server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
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
func (p *Provider) Name() string { return "ollama" }

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsStreaming: true,
		SupportsJSONMode:  true,
		SupportsTools:     true,
	}
}

// CreateModel implements llm.Provider.
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

// body assembles the chat request. Generation parameters live under
// "options"; max output tokens maps to num_predict. Hints keyed ollama.*
// override anything set here, so ollama.options.temperature or ollama.format
// win over the request's own fields.
func (p *Provider) body(model string, req *llm.Request, stream bool) map[string]any {
	body := map[string]any{
		"model":    model,
		"messages": providers.WireMessages(req.Messages),
		"stream":   stream,
	}

	options := make(map[string]any)
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		options["top_p"] = *req.TopP
	}
	if req.MaxOutputTokens > 0 {
		options["num_predict"] = req.MaxOutputTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}

	if req.ResponseFormat == llm.FormatJSONObject {
		body["format"] = "json"
	}
	if len(req.Tools) > 0 {
		body["tools"] = providers.WireTools(req.Tools)
	}

	providers.ApplyHints(body, req.ProviderHints, p.Name())
	return body
}

func (p *Provider) exchange(ctx context.Context, body map[string]any, call *llm.CallContext) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.Errorf(llm.KindValidation, "encode request body: %v", err).
			WithRequestID(call.RequestID()).WithCause(err)
	}

	resp, err := p.transport.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     p.baseURL + "/api/chat",
		Headers: map[string]string{"Content-Type": "application/json"},
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

// chatFrame is one Ollama response object, whole for unary and per-line for
// streaming. Tool-call arguments arrive as a JSON object rather than a
// string.
type chatFrame struct {
	Model   string `json:"model"`
	Message struct {
		Content   string `json:"content"`
		Thinking  string `json:"thinking"`
		ToolCalls []struct {
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (f *chatFrame) toolCalls() []llm.ToolCall {
	var out []llm.ToolCall
	for _, call := range f.Message.ToolCalls {
		if call.Function.Name == "" {
			continue
		}
		args := string(call.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		out = append(out, llm.ToolCall{
			// Ollama assigns no call ids; synthesize one so callers can
			// correlate results.
			ID:        uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out
}

func (f *chatFrame) usage() llm.Usage {
	return llm.Usage{
		PromptTokens:     f.PromptEvalCount,
		CompletionTokens: f.EvalCount,
	}.Normalized()
}

// Send implements llm.Provider.
func (p *Provider) Send(ctx context.Context, model llm.ProviderModel, req *llm.Request, call *llm.CallContext) (*llm.Response, error) {
	data, err := p.exchange(ctx, p.body(model.ID, req, false), call)
	if err != nil {
		return nil, err
	}

	var frame chatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, llm.Errorf(llm.KindLLM, "decode chat response: %v", err).
			WithRequestID(call.RequestID()).WithCause(err)
	}

	resp := &llm.Response{
		Output: llm.Message{
			Role:    llm.RoleAssistant,
			Content: frame.Message.Content,
		},
		Usage:        frame.usage(),
		FinishReason: llm.MapFinishReason(frame.DoneReason),
		ToolCalls:    frame.toolCalls(),
	}
	if frame.Model != "" {
		resp.Raw = map[string]any{"model": frame.Model}
	}
	return resp, nil
}

// Stream implements llm.Provider. Each NDJSON line yields its events in
// order; the done=true line becomes the terminal complete event, synthesized
// when the server never sent one.
func (p *Provider) Stream(ctx context.Context, model llm.ProviderModel, req *llm.Request, call *llm.CallContext) (<-chan llm.StreamEvent, error) {
	data, err := p.exchange(ctx, p.body(model.ID, req, true), call)
	if err != nil {
		return nil, err
	}

	var events []llm.StreamEvent
	var usage llm.Usage
	var reasoning strings.Builder

	for _, payload := range providers.NDJSONPayloads(data) {
		var frame chatFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		if frame.Message.Content != "" {
			events = append(events, llm.Delta(frame.Message.Content))
		}
		if frame.Message.Thinking != "" {
			reasoning.WriteString(frame.Message.Thinking)
			events = append(events, llm.StreamEvent{Kind: llm.EventReasoning, Reasoning: frame.Message.Thinking})
		}
		for _, callEv := range frame.toolCalls() {
			c := callEv
			events = append(events, llm.StreamEvent{Kind: llm.EventToolCall, ToolCall: &c})
		}
		if frame.Done {
			usage = frame.usage()
			break
		}
	}

	complete := llm.Complete(usage)
	complete.Reasoning = reasoning.String()
	events = append(events, complete)
	return providers.EmitEvents(events), nil
}
