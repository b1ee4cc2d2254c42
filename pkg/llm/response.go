package llm

// Usage is the token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Normalized returns a copy where TotalTokens is computed as prompt plus
// completion when the provider omitted it.
func (u Usage) Normalized() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// Add accumulates another usage record into this one. Used by streaming
// middlewares that aggregate usage across complete events.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// FinishReason is the reason the model stopped generating.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishLength   FinishReason = "length"
	FinishToolCall FinishReason = "tool_call"
	FinishUnknown  FinishReason = "unknown"
)

// MapFinishReason maps a vendor finish-reason string to the canonical set.
// The mapping is total: unrecognized values map to FinishUnknown.
func MapFinishReason(vendor string) FinishReason {
	switch vendor {
	case "stop":
		return FinishStop
	case "length":
		return FinishLength
	case "tool_call", "tool_calls", "tool":
		return FinishToolCall
	default:
		return FinishUnknown
	}
}

// Response is a normalized completion result.
//
// Responses are logically immutable. A middleware that needs to annotate one
// (for example the validator in lenient mode) clones it and augments the
// clone's Raw map.
type Response struct {
	// Output is the assistant message.
	Output Message `json:"output"`

	// Usage is the token accounting, normalized so TotalTokens is never zero
	// when either component is present.
	Usage Usage `json:"usage"`

	// FinishReason is empty when the provider did not report one.
	FinishReason FinishReason `json:"finish_reason,omitempty"`

	// ToolCalls holds tool invocations requested by the model, in emission
	// order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Raw carries provider-specific passthrough fields (vendor id, model,
	// created timestamp, system fingerprint) and middleware annotations.
	Raw map[string]any `json:"raw,omitempty"`
}

// Clone returns a deep copy of the response. Cache storage and retrieval both
// clone so callers may mutate returned responses freely.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := &Response{
		Output:       r.Output,
		Usage:        r.Usage,
		FinishReason: r.FinishReason,
	}
	if r.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(r.ToolCalls))
		copy(out.ToolCalls, r.ToolCalls)
	}
	out.Raw = cloneAnyMap(r.Raw)
	return out
}

// WithRawFlag clones the response and sets a boolean annotation in Raw.
func (r *Response) WithRawFlag(key string, value bool) *Response {
	out := r.Clone()
	if out.Raw == nil {
		out.Raw = make(map[string]any, 1)
	}
	out.Raw[key] = value
	return out
}
