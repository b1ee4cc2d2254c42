package llm

// Capabilities advertises what a provider adapter supports. The client checks
// SupportsStreaming at the entry boundary; the remaining flags are available
// to routing and validation layers.
type Capabilities struct {
	SupportsStreaming bool `json:"supports_streaming"`
	SupportsJSONMode  bool `json:"supports_json_mode"`
	SupportsTools     bool `json:"supports_tools"`
	SupportsBatch     bool `json:"supports_batch"`
	SupportsVision    bool `json:"supports_vision"`
	SupportsAudio     bool `json:"supports_audio"`
}

// ModelFormat tags the prompting style of a model.
type ModelFormat string

const (
	FormatChat     ModelFormat = "chat"
	FormatInstruct ModelFormat = "instruct"
	FormatJSON     ModelFormat = "json"
)

// ProviderModel is an opaque model handle produced by a provider's
// CreateModel factory.
type ProviderModel struct {
	// ID is the provider's model identifier (or deployment name on Azure).
	ID string `json:"id"`

	// Format tags the prompting style. Defaults to chat.
	Format ModelFormat `json:"format,omitempty"`

	// MaxInputTokens and MaxOutputTokens are optional context-size hints.
	MaxInputTokens  int `json:"max_input_tokens,omitempty"`
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
}

// ModelOptions configures CreateModel.
type ModelOptions struct {
	Format          ModelFormat
	MaxInputTokens  int
	MaxOutputTokens int
}
