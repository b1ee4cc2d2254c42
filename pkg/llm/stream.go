package llm

// EventKind tags a StreamEvent.
type EventKind string

const (
	// EventDelta carries a fragment of generated text.
	EventDelta EventKind = "delta"

	// EventToolCall carries a tool invocation fragment.
	EventToolCall EventKind = "tool_call"

	// EventReasoning carries a reasoning segment. Provider-optional.
	EventReasoning EventKind = "reasoning"

	// EventComplete terminates a graceful stream and may carry final usage.
	EventComplete EventKind = "complete"

	// EventError terminates a stream with an error payload.
	EventError EventKind = "error"
)

// StreamEvent is one element of a streamed completion. Exactly one terminal
// event (complete or error, with IsTerminal set) is emitted on graceful
// completion, and events are delivered in provider emission order.
type StreamEvent struct {
	Kind EventKind `json:"kind"`

	// TextDelta is set for delta events.
	TextDelta string `json:"text_delta,omitempty"`

	// ToolCall is set for tool_call events.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// Reasoning is set for reasoning events, and may also be set on the
	// terminal complete event as the coalesced concatenation of all
	// reasoning fragments.
	Reasoning string `json:"reasoning,omitempty"`

	// Usage is set on the terminal complete event when the provider reported
	// token counts.
	Usage *Usage `json:"usage,omitempty"`

	// Err is set for error events.
	Err error `json:"-"`

	// IsTerminal marks the final event of the stream.
	IsTerminal bool `json:"is_terminal,omitempty"`
}

// Delta builds a text fragment event.
func Delta(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, TextDelta: text}
}

// Complete builds a terminal complete event carrying final usage.
func Complete(usage Usage) StreamEvent {
	u := usage.Normalized()
	return StreamEvent{Kind: EventComplete, Usage: &u, IsTerminal: true}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Kind: EventError, Err: err, IsTerminal: true}
}
