package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

func validatorChain(t *testing.T, opts ...ValidatorOption) *Chain {
	t.Helper()
	chain, err := NewBuilder().
		Use(NewValidator(opts...)).
		Use(NewProviderTerminal()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return chain
}

func TestValidator_ValidJSONObjectPasses(t *testing.T) {
	chain := validatorChain(t)
	provider := &fakeProvider{name: "fake", response: okResponse(`{"status":"ok"}`)}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	resp, err := chain.Execute(context.Background(), testContext(provider, req, false))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, annotated := resp.Raw[RawJSONInvalid]; annotated {
		t.Fatal("valid object was annotated")
	}
}

func TestValidator_StrictJSONFailure(t *testing.T) {
	chain := validatorChain(t)
	provider := &fakeProvider{name: "fake", response: okResponse(`{not json`)}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	_, err := chain.Execute(context.Background(), testContext(provider, req, false))
	if err == nil {
		t.Fatal("invalid JSON accepted in strict mode")
	}
	if !llm.IsKind(err, llm.KindValidation) {
		t.Fatalf("error kind = %q, want validation", llm.KindOf(err))
	}
	if !strings.Contains(err.Error(), "valid JSON") {
		t.Fatalf("error %q does not mention valid JSON", err)
	}
}

func TestValidator_TopLevelArrayFailsJSONMode(t *testing.T) {
	chain := validatorChain(t)
	provider := &fakeProvider{name: "fake", response: okResponse(`[1,2,3]`)}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	_, err := chain.Execute(context.Background(), testContext(provider, req, false))
	if !llm.IsKind(err, llm.KindValidation) {
		t.Fatalf("top-level array passed json_object mode: %v", err)
	}
}

func TestValidator_LenientJSONAnnotates(t *testing.T) {
	chain := validatorChain(t)
	provider := &fakeProvider{name: "fake", response: okResponse(`{not json`)}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	ec := testContext(provider, req, false)
	ec.Options.FailOnInvalidJSON = false
	resp, err := chain.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("lenient mode failed: %v", err)
	}
	if flag, _ := resp.Raw[RawJSONInvalid].(bool); !flag {
		t.Fatalf("raw[%s] = %v, want true", RawJSONInvalid, resp.Raw[RawJSONInvalid])
	}
	// The provider's response must stay unannotated.
	if provider.response.Raw != nil {
		t.Fatal("annotation mutated the provider's response")
	}
}

func toolRequest(t *testing.T) *llm.Request {
	t.Helper()
	tools, err := llm.NewToolCollection(llm.ToolDefinition{
		Name: "weather",
		Parameters: map[string]any{
			"type":     "object",
			"required": []any{"city"},
		},
	})
	if err != nil {
		t.Fatalf("NewToolCollection: %v", err)
	}
	return &llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Tools:    tools,
	}
}

func TestValidator_ToolCallNameMismatchStrict(t *testing.T) {
	chain := validatorChain(t)
	resp := okResponse("")
	resp.ToolCalls = []llm.ToolCall{{ID: "1", Name: "calendar", Arguments: "{}"}}
	provider := &fakeProvider{name: "fake", response: resp}

	_, err := chain.Execute(context.Background(), testContext(provider, toolRequest(t), false))
	if !llm.IsKind(err, llm.KindValidation) {
		t.Fatalf("error kind = %q, want validation", llm.KindOf(err))
	}
	if !strings.Contains(err.Error(), "not part of the declared tool collection") {
		t.Fatalf("error %q does not name the rule", err)
	}
}

func TestValidator_ToolCallChecks(t *testing.T) {
	cases := []struct {
		name    string
		call    llm.ToolCall
		wantErr string
	}{
		{"unparseable arguments", llm.ToolCall{Name: "weather", Arguments: `{"city":`}, "not valid JSON"},
		{"missing required property", llm.ToolCall{Name: "weather", Arguments: `{"units":"C"}`}, "required property"},
		{"valid call", llm.ToolCall{Name: "weather", Arguments: `{"city":"Oslo"}`}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := validatorChain(t)
			resp := okResponse("")
			resp.ToolCalls = []llm.ToolCall{tc.call}
			provider := &fakeProvider{name: "fake", response: resp}

			_, err := chain.Execute(context.Background(), testContext(provider, toolRequest(t), false))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("valid call rejected: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidator_StreamingStrictReplacesTerminal(t *testing.T) {
	chain := validatorChain(t)
	provider := &fakeProvider{
		name: "fake",
		streamSeqs: [][]llm.StreamEvent{{
			llm.Delta(`{"half":`),
			llm.Complete(llm.Usage{PromptTokens: 1, CompletionTokens: 1}),
		}},
	}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	events, err := chain.ExecuteStream(context.Background(), testContext(provider, req, true))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	got := drain(events)
	last := got[len(got)-1]
	if last.Kind != llm.EventError || !last.IsTerminal {
		t.Fatalf("last event = %+v, want terminal error", last)
	}
	if !llm.IsKind(last.Err, llm.KindValidation) {
		t.Fatalf("error kind = %q, want validation", llm.KindOf(last.Err))
	}

	terminalCount := 0
	for _, ev := range got {
		if ev.IsTerminal {
			terminalCount++
		}
	}
	if terminalCount != 1 {
		t.Fatalf("terminal events = %d, want 1", terminalCount)
	}
}

func TestValidator_StreamingLenientPublishesItem(t *testing.T) {
	chain := validatorChain(t)
	provider := &fakeProvider{
		name: "fake",
		streamSeqs: [][]llm.StreamEvent{{
			llm.Delta("not json at all"),
			llm.Complete(llm.Usage{PromptTokens: 1, CompletionTokens: 1}),
		}},
	}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	ec := testContext(provider, req, true)
	ec.Options.FailOnInvalidJSON = false
	events, err := chain.ExecuteStream(context.Background(), ec)
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	got := drain(events)
	last := got[len(got)-1]
	if last.Kind != llm.EventComplete || !last.IsTerminal {
		t.Fatalf("last event = %+v, want terminal complete", last)
	}
	if !ec.Call.BoolItem(llm.ItemJSONInvalid) {
		t.Fatal("llm.validation.json_invalid not published")
	}
}

func TestValidator_SchemaValidation(t *testing.T) {
	chain := validatorChain(t, WithSchemaValidation())
	tools, err := llm.NewToolCollection(llm.ToolDefinition{
		Name: "weather",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
			"required": []any{"city"},
		},
	})
	if err != nil {
		t.Fatalf("NewToolCollection: %v", err)
	}
	req := &llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Tools:    tools,
	}

	resp := okResponse("")
	resp.ToolCalls = []llm.ToolCall{{Name: "weather", Arguments: `{"city":42}`}}
	provider := &fakeProvider{name: "fake", response: resp}

	_, execErr := chain.Execute(context.Background(), testContext(provider, req, false))
	if !llm.IsKind(execErr, llm.KindValidation) {
		t.Fatalf("schema violation passed: %v", execErr)
	}
	if !strings.Contains(execErr.Error(), "schema") {
		t.Fatalf("error %q does not mention the schema", execErr)
	}
}
