package llm

// ClientOptions tunes pipeline behavior. The client snapshots options at
// build time, so mutating a ClientOptions value after construction never
// affects an already-built client.
type ClientOptions struct {
	// FailOnInvalidJSON makes the validator middleware fail the request
	// (error kind validation) on invalid JSON output or tool-call mismatch.
	// When false the validator annotates instead of failing.
	FailOnInvalidJSON bool `yaml:"fail_on_invalid_json"`

	// EnableRedaction makes the redaction middleware publish a masked copy of
	// the messages into the call context. The preview is produced regardless.
	EnableRedaction bool `yaml:"enable_redaction"`

	// EnableTokenUsageEvents gates the token histograms recorded by the
	// metrics middleware.
	EnableTokenUsageEvents bool `yaml:"enable_token_usage_events"`

	// CoalesceFinalStreamText makes the client buffer delta fragments and
	// deliver the concatenated text as a single delta immediately before the
	// terminal event.
	CoalesceFinalStreamText bool `yaml:"coalesce_final_stream_text"`

	// DefaultMaxOutputTokens is applied when a request leaves
	// MaxOutputTokens unset.
	DefaultMaxOutputTokens int `yaml:"default_max_output_tokens"`
}

// DefaultClientOptions returns the documented defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		FailOnInvalidJSON:       true,
		EnableRedaction:         true,
		EnableTokenUsageEvents:  true,
		CoalesceFinalStreamText: false,
		DefaultMaxOutputTokens:  512,
	}
}
