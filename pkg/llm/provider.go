package llm

import "context"

// Provider is the adapter contract. An adapter owns wire-format translation
// for one backend family: request shaping, response mapping, streaming frame
// parsing, and error translation. Adapters never retry, cache, or log; those
// concerns belong to the pipeline.
type Provider interface {
	// Name returns the stable provider identifier, e.g. "openai" or "ollama".
	Name() string

	// Capabilities advertises what this adapter supports.
	Capabilities() Capabilities

	// CreateModel resolves a model identifier into an opaque handle. The same
	// identifier always resolves to an equivalent handle.
	CreateModel(id string, opts ModelOptions) (ProviderModel, error)

	// Send executes one non-streaming completion.
	Send(ctx context.Context, model ProviderModel, req *Request, call *CallContext) (*Response, error)

	// Stream executes one streaming completion. The returned channel carries
	// events in provider emission order and is closed after the terminal
	// event. Providers that do not support streaming return an error of kind
	// not_supported.
	Stream(ctx context.Context, model ProviderModel, req *Request, call *CallContext) (<-chan StreamEvent, error)
}
