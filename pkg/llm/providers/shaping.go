package providers

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// WireMessages maps the canonical messages into OpenAI-style wire messages,
// applying the shared role mapping.
func WireMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    llm.WireRole(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}

// WireTools maps a tool collection into the shared tools array shape:
// {type: "function", function: {name, description, parameters}}.
func WireTools(tools llm.ToolCollection) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, def := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return out
}

// ChatBody assembles the OpenAI-style chat completions request body.
// Temperature, top-p, and max tokens appear only when set on the request.
func ChatBody(model string, req *llm.Request, stream bool) map[string]any {
	body := map[string]any{
		"model":    model,
		"messages": WireMessages(req.Messages),
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.MaxOutputTokens > 0 {
		body["max_tokens"] = req.MaxOutputTokens
	}
	if req.ResponseFormat == llm.FormatJSONObject {
		body["response_format"] = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if len(req.Tools) > 0 {
		body["tools"] = WireTools(req.Tools)
	}
	if stream {
		body["stream"] = true
	}
	return body
}

// ApplyHints merges adapter-prefixed provider hints into a request body.
// A hint keyed "<adapter>.a.b" sets body["a"]["b"], creating intermediate
// maps and overriding adapter defaults. Hints without the adapter prefix are
// ignored here; cache hints in particular never reach the wire.
func ApplyHints(body map[string]any, hints map[string]any, adapter string) {
	prefix := adapter + "."
	for key, value := range hints {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		setPath(body, strings.Split(strings.TrimPrefix(key, prefix), "."), value)
	}
}

func setPath(body map[string]any, path []string, value any) {
	if len(path) == 0 {
		return
	}
	for len(path) > 1 {
		child, ok := body[path[0]].(map[string]any)
		if !ok {
			child = make(map[string]any)
			body[path[0]] = child
		}
		body = child
		path = path[1:]
	}
	body[path[0]] = value
}
