package providers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// sseTerminator ends an OpenAI-style event stream.
const sseTerminator = "[DONE]"

// SSEPayloads extracts the data payloads from a server-sent-events body.
// Each "data:" line is treated as one complete JSON payload; the stream ends
// at the [DONE] sentinel. Lines without the data prefix (comments, event
// names, blanks) are skipped.
func SSEPayloads(body []byte) []string {
	var payloads []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == sseTerminator {
			break
		}
		if payload != "" {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

// NDJSONPayloads splits a newline-delimited JSON body into its object lines.
func NDJSONPayloads(body []byte) []string {
	var payloads []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			payloads = append(payloads, line)
		}
	}
	return payloads
}

// chatStreamChunk is one OpenAI-style SSE frame.
type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string         `json:"content"`
			Reasoning string         `json:"reasoning"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// ParseChatStream converts an SSE chat completion body into the ordered
// event sequence: one delta per content fragment, one tool_call per tool
// fragment, one reasoning per reasoning fragment, then exactly one terminal
// complete event carrying final usage and the coalesced reasoning text.
// Frames that fail to decode are skipped rather than aborting the tail.
func ParseChatStream(body []byte, requestID string) []llm.StreamEvent {
	var events []llm.StreamEvent
	var usage llm.Usage
	var reasoning strings.Builder

	for _, payload := range SSEPayloads(body) {
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage = llm.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			events = append(events, llm.Delta(delta.Content))
		}
		if delta.Reasoning != "" {
			reasoning.WriteString(delta.Reasoning)
			events = append(events, llm.StreamEvent{Kind: llm.EventReasoning, Reasoning: delta.Reasoning})
		}
		for _, call := range mapToolCalls(delta.ToolCalls) {
			c := call
			events = append(events, llm.StreamEvent{Kind: llm.EventToolCall, ToolCall: &c})
		}
	}

	complete := llm.Complete(usage)
	complete.Reasoning = reasoning.String()
	return append(events, complete)
}

// EmitEvents delivers a pre-parsed event sequence as a closed channel. The
// full body is already in memory, so the channel is buffered and never
// blocks the adapter.
func EmitEvents(events []llm.StreamEvent) <-chan llm.StreamEvent {
	out := make(chan llm.StreamEvent, len(events))
	for _, ev := range events {
		out <- ev
	}
	close(out)
	return out
}
