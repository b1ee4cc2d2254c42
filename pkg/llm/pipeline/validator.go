package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Raw annotation keys set by lenient validation on the unary path.
const (
	RawJSONInvalid  = "json_invalid"
	RawToolMismatch = "tool_mismatch"
)

// Validator checks responses against the request's declared constraints:
// json_object format means the output must parse as a JSON object, and every
// emitted tool call must name a declared tool, carry parseable arguments, and
// supply the schema's required properties. Strict mode fails the invocation
// with a validation error; lenient mode annotates instead.
//
// With schema validation enabled, tool-call arguments are additionally
// checked against the full parameter schema. Compiled schemas are memoized by
// their serialized form.
type Validator struct {
	validateSchemas bool

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithSchemaValidation enables full JSON-schema validation of tool-call
// arguments.
func WithSchemaValidation() ValidatorOption {
	return func(v *Validator) { v.validateSchemas = true }
}

// NewValidator creates the validator middleware.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name implements Middleware.
func (v *Validator) Name() string { return "validator" }

// Handle implements Middleware.
func (v *Validator) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	resp, err := next(ctx, ec)
	if err != nil {
		return nil, err
	}

	if ec.Request.ResponseFormat == llm.FormatJSONObject && !isJSONObject(resp.Output.Content) {
		if ec.Options.FailOnInvalidJSON {
			return nil, llm.NewError(llm.KindValidation, "response content is not valid JSON with a top-level object").
				WithRequestID(ec.Call.RequestID())
		}
		resp = resp.WithRawFlag(RawJSONInvalid, true)
	}

	if len(resp.ToolCalls) > 0 {
		if verr := v.checkToolCalls(ec.Request.Tools, resp.ToolCalls); verr != nil {
			if ec.Options.FailOnInvalidJSON {
				return nil, llm.NewError(llm.KindValidation, verr.Error()).
					WithRequestID(ec.Call.RequestID())
			}
			resp = resp.WithRawFlag(RawToolMismatch, true)
		}
	}

	return resp, nil
}

// HandleStream implements Middleware. Delta text and tool calls are
// accumulated while events pass through unmodified; the terminal complete
// event is held back until the checks run, and in strict mode a violation
// replaces it with a terminal error event.
func (v *Validator) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	in, err := next(ctx, ec)
	if err != nil {
		return nil, err
	}

	checkJSON := ec.Request.ResponseFormat == llm.FormatJSONObject
	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)

		send := func(ev llm.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var text strings.Builder
		var calls []llm.ToolCall
		var pendingComplete *llm.StreamEvent

		for ev := range in {
			switch ev.Kind {
			case llm.EventDelta:
				if checkJSON {
					text.WriteString(ev.TextDelta)
				}
			case llm.EventToolCall:
				if ev.ToolCall != nil {
					calls = append(calls, *ev.ToolCall)
				}
			case llm.EventComplete:
				complete := ev
				pendingComplete = &complete
				continue
			}
			if !send(ev) {
				return
			}
		}

		var violation error
		if checkJSON && !isJSONObject(text.String()) {
			violation = fmt.Errorf("streamed content is not valid JSON with a top-level object")
			if !ec.Options.FailOnInvalidJSON {
				ec.Call.SetItem(llm.ItemJSONInvalid, true)
			}
		}
		if violation == nil && len(calls) > 0 {
			if verr := v.checkToolCalls(ec.Request.Tools, calls); verr != nil {
				violation = verr
				if !ec.Options.FailOnInvalidJSON {
					ec.Call.SetItem(llm.ItemToolMismatch, true)
				}
			}
		}

		if violation != nil && ec.Options.FailOnInvalidJSON {
			send(llm.ErrorEvent(llm.NewError(llm.KindValidation, violation.Error()).
				WithRequestID(ec.Call.RequestID())))
			return
		}
		if pendingComplete != nil {
			send(*pendingComplete)
		}
	}()
	return out, nil
}

// checkToolCalls validates every call against the declared collection.
func (v *Validator) checkToolCalls(tools llm.ToolCollection, calls []llm.ToolCall) error {
	for _, call := range calls {
		def, ok := tools.Lookup(call.Name)
		if !ok {
			return fmt.Errorf("tool %q is not part of the declared tool collection", call.Name)
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Errorf("tool %q arguments are not valid JSON: %v", call.Name, err)
		}

		for _, prop := range def.RequiredProperties() {
			if _, present := args[prop]; !present {
				return fmt.Errorf("tool %q arguments are missing required property %q", call.Name, prop)
			}
		}

		if v.validateSchemas && len(def.Parameters) > 0 {
			schema, err := v.compiled(def)
			if err != nil {
				// An uncompilable declared schema is the caller's bug, not
				// the model's.
				continue
			}
			var doc any
			if err := json.Unmarshal([]byte(call.Arguments), &doc); err == nil {
				if err := schema.Validate(doc); err != nil {
					return fmt.Errorf("tool %q arguments do not satisfy the declared schema: %v", call.Name, err)
				}
			}
		}
	}
	return nil
}

// compiled returns the memoized compiled schema for a definition.
func (v *Validator) compiled(def llm.ToolDefinition) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return nil, err
	}
	key := string(raw)

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[key]; ok {
		return s, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", strings.NewReader(key)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("tool.json")
	if err != nil {
		return nil, err
	}
	v.schemas[key] = schema
	return schema, nil
}

// isJSONObject reports whether s parses as a JSON value whose top-level kind
// is object.
func isJSONObject(s string) bool {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return false
	}
	_, ok := v.(map[string]any)
	return ok
}
