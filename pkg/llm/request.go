package llm

// ResponseFormat constrains the shape of the model's output.
type ResponseFormat string

const (
	// FormatText requests free-form text (the default when empty).
	FormatText ResponseFormat = "text"

	// FormatJSONObject requests a single JSON object.
	FormatJSONObject ResponseFormat = "json_object"
)

// Request is a provider-agnostic chat completion request.
//
// Requests are treated as logically immutable once they enter the client:
// pipeline middlewares that need a modified request materialize a copy with
// Clone rather than mutating the original.
type Request struct {
	// Messages is the ordered conversation history. It is normally non-empty;
	// an empty list is passed through and the adapter decides acceptability.
	Messages []Message `json:"messages"`

	// Tools declares the tools the model may call.
	Tools ToolCollection `json:"tools,omitempty"`

	// Temperature, when set, must be within [0.0, 2.0]. Nil means "use the
	// provider default" and the field is omitted from the wire payload.
	Temperature *float32 `json:"temperature,omitempty"`

	// TopP, when set, must be within [0.0, 1.0].
	TopP *float32 `json:"top_p,omitempty"`

	// MaxOutputTokens caps the generated output. Zero means unset; the client
	// applies its configured default at the entry point.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// ResponseFormat is FormatText or FormatJSONObject. Adapters must not
	// silently drop a json_object constraint.
	ResponseFormat ResponseFormat `json:"response_format,omitempty"`

	// ProviderHints carries adapter-specific or cache-specific flags. Hints
	// never participate in request hashing. Recognized keys include
	// "no_cache", "cache_ttl_seconds", "cache_ttl", and vendor-prefixed keys
	// such as "ollama.options.temperature".
	ProviderHints map[string]any `json:"provider_hints,omitempty"`
}

// Clone returns a deep copy of the request. The copy shares nothing with the
// original, so mutating it is always safe.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := &Request{
		MaxOutputTokens: r.MaxOutputTokens,
		ResponseFormat:  r.ResponseFormat,
	}
	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		copy(out.Messages, r.Messages)
	}
	out.Tools = r.Tools.clone()
	if r.Temperature != nil {
		t := *r.Temperature
		out.Temperature = &t
	}
	if r.TopP != nil {
		p := *r.TopP
		out.TopP = &p
	}
	out.ProviderHints = cloneAnyMap(r.ProviderHints)
	return out
}

// Float32 returns a pointer to v, for populating optional request fields.
func Float32(v float32) *float32 { return &v }
