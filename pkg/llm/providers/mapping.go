package providers

import (
	"encoding/json"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// chatCompletion is the OpenAI-style response envelope. Content is kept raw
// because vendors emit either a plain string or an array of typed parts.
type chatCompletion struct {
	ID                string `json:"id"`
	Model             string `json:"model"`
	Created           int64  `json:"created"`
	SystemFingerprint string `json:"system_fingerprint"`
	Choices           []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

type chatMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Reasoning string          `json:"reasoning"`
	ToolCalls []chatToolCall  `json:"tool_calls"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ContentText extracts assistant text from a raw content field, accepting
// both the plain-string form and the array-of-parts form where each part is
// {"type": "text", "text": "..."}. Non-text parts are skipped.
func ContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var out string
	for _, part := range parts {
		if part.Type == "" || part.Type == "text" {
			out += part.Text
		}
	}
	return out
}

// mapToolCalls converts wire tool calls into ordered ToolCall entries,
// dropping entries without a name.
func mapToolCalls(calls []chatToolCall) []llm.ToolCall {
	var out []llm.ToolCall
	for _, call := range calls {
		if call.Function.Name == "" {
			continue
		}
		out = append(out, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}

// ParseChatCompletion normalizes an OpenAI-style chat completion body. Vendor
// id, model, created timestamp, and system fingerprint survive in Raw.
func ParseChatCompletion(body []byte, requestID string) (*llm.Response, error) {
	var wire chatCompletion
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, llm.Errorf(llm.KindLLM, "decode chat completion: %v", err).
			WithRequestID(requestID).WithCause(err)
	}
	if len(wire.Choices) == 0 {
		return nil, llm.NewError(llm.KindLLM, "chat completion carried no choices").
			WithRequestID(requestID)
	}

	choice := wire.Choices[0]
	resp := &llm.Response{
		Output: llm.Message{
			Role:    llm.RoleAssistant,
			Content: ContentText(choice.Message.Content),
		},
		Usage: llm.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}.Normalized(),
		FinishReason: llm.MapFinishReason(choice.FinishReason),
		ToolCalls:    mapToolCalls(choice.Message.ToolCalls),
	}

	raw := make(map[string]any)
	if wire.ID != "" {
		raw["id"] = wire.ID
	}
	if wire.Model != "" {
		raw["model"] = wire.Model
	}
	if wire.Created != 0 {
		raw["created"] = wire.Created
	}
	if wire.SystemFingerprint != "" {
		raw["system_fingerprint"] = wire.SystemFingerprint
	}
	if len(raw) > 0 {
		resp.Raw = raw
	}
	return resp, nil
}
