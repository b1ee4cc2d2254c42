package providers

import (
	"strings"
	"testing"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

func TestSSEPayloads(t *testing.T) {
	body := strings.Join([]string{
		`: keep-alive comment`,
		`event: message`,
		`data: {"a":1}`,
		``,
		`data:{"b":2}`,
		``,
		`data: [DONE]`,
		`data: {"after":"the sentinel"}`,
	}, "\n")

	got := SSEPayloads([]byte(body))
	want := []string{`{"a":1}`, `{"b":2}`}
	if len(got) != len(want) {
		t.Fatalf("payloads = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payload[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNDJSONPayloads(t *testing.T) {
	body := "{\"a\":1}\n\n{\"b\":2}\n{\"c\":3}"
	got := NDJSONPayloads([]byte(body))
	if len(got) != 3 {
		t.Fatalf("payloads = %v, want 3 lines", got)
	}
	if got[0] != `{"a":1}` || got[2] != `{"c":3}` {
		t.Fatalf("payloads = %v", got)
	}
}

func TestParseChatStream(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: {"choices":[{"delta":{"reasoning":"thinking"}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_1","function":{"name":"weather","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`,
		`data: [DONE]`,
	}, "\n\n")

	events := ParseChatStream([]byte(body), "req-1")
	if len(events) != 5 {
		t.Fatalf("events = %d, want 5", len(events))
	}
	if events[0].Kind != llm.EventDelta || events[0].TextDelta != "Hel" {
		t.Fatalf("event[0] = %+v", events[0])
	}
	if events[1].TextDelta != "lo" {
		t.Fatalf("event[1] = %+v", events[1])
	}
	if events[2].Kind != llm.EventReasoning || events[2].Reasoning != "thinking" {
		t.Fatalf("event[2] = %+v", events[2])
	}
	if events[3].Kind != llm.EventToolCall || events[3].ToolCall == nil || events[3].ToolCall.Name != "weather" {
		t.Fatalf("event[3] = %+v", events[3])
	}

	last := events[len(events)-1]
	if last.Kind != llm.EventComplete || !last.IsTerminal {
		t.Fatalf("last event = %+v, want terminal complete", last)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 9 {
		t.Fatalf("usage = %+v, want total 9", last.Usage)
	}
	if last.Reasoning != "thinking" {
		t.Fatalf("coalesced reasoning = %q", last.Reasoning)
	}
}

func TestParseChatStream_SkipsBadFrames(t *testing.T) {
	body := strings.Join([]string{
		`data: {broken`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}, "\n")

	events := ParseChatStream([]byte(body), "req-1")
	if len(events) != 2 {
		t.Fatalf("events = %d, want delta plus terminal", len(events))
	}
	if events[0].TextDelta != "ok" {
		t.Fatalf("event[0] = %+v", events[0])
	}
}

func TestParseChatStream_EmptyBodyStillTerminates(t *testing.T) {
	events := ParseChatStream(nil, "req-1")
	if len(events) != 1 || events[0].Kind != llm.EventComplete || !events[0].IsTerminal {
		t.Fatalf("events = %+v, want a single terminal complete", events)
	}
}

func TestEmitEvents(t *testing.T) {
	in := []llm.StreamEvent{
		llm.Delta("a"),
		llm.Delta("b"),
		llm.Complete(llm.Usage{PromptTokens: 1, CompletionTokens: 1}),
	}
	ch := EmitEvents(in)

	var got []llm.StreamEvent
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].TextDelta != "a" || got[1].TextDelta != "b" || !got[2].IsTerminal {
		t.Fatalf("events = %+v", got)
	}
}
