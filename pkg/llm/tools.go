package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ToolDefinition declares a tool the model may invoke. Parameters holds a
// JSON-schema-like descriptor, typically containing at least "type" and
// optionally "properties" and "required".
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// RequiredProperties returns the schema's "required" list, if present.
// Entries that are not strings are skipped.
func (d ToolDefinition) RequiredProperties() []string {
	raw, ok := d.Parameters["required"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		// Allow callers that built the descriptor in Go to use []string.
		if ss, ok := raw.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToolCollection is an ordered sequence of tool definitions with unique,
// case-sensitive names.
type ToolCollection []ToolDefinition

// NewToolCollection validates and assembles a collection. It fails on an
// empty tool name or a duplicate name.
func NewToolCollection(defs ...ToolDefinition) (ToolCollection, error) {
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tool definition requires a name")
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return ToolCollection(defs), nil
}

// Lookup returns the definition with the given name. Matching is
// case-sensitive.
func (c ToolCollection) Lookup(name string) (ToolDefinition, bool) {
	for _, d := range c {
		if d.Name == name {
			return d, true
		}
	}
	return ToolDefinition{}, false
}

// Names returns the tool names in declaration order.
func (c ToolCollection) Names() []string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Name
	}
	return names
}

// clone deep-copies the collection, including each parameter descriptor.
func (c ToolCollection) clone() ToolCollection {
	if c == nil {
		return nil
	}
	out := make(ToolCollection, len(c))
	for i, d := range c {
		out[i] = ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  cloneAnyMap(d.Parameters),
		}
	}
	return out
}

// ToolCall is a tool invocation emitted by the model. Arguments is the raw
// JSON string produced by the model; it is not parsed or validated here.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolFor derives a ToolDefinition from a Go struct type. The parameter
// descriptor is generated by reflecting T with invopop/jsonschema, so struct
// tags (`json`, `jsonschema`) control property names, descriptions, and the
// required list.
//
//	type weatherArgs struct {
//	    City string `json:"city" jsonschema:"required,description=City name"`
//	}
//	def, err := llm.ToolFor[weatherArgs]("weather", "Current weather for a city")
func ToolFor[T any](name, description string) (ToolDefinition, error) {
	if name == "" {
		return ToolDefinition{}, fmt.Errorf("tool definition requires a name")
	}
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := reflector.Reflect(&zero)
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		return ToolDefinition{}, fmt.Errorf("marshal schema for tool %q: %w", name, err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return ToolDefinition{}, fmt.Errorf("decode schema for tool %q: %w", name, err)
	}
	return ToolDefinition{Name: name, Description: description, Parameters: params}, nil
}

// cloneAnyMap deep-copies a JSON-shaped map (maps, slices, scalars).
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAnyValue(v)
	}
	return out
}

func cloneAnyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneAnyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneAnyValue(e)
		}
		return out
	default:
		return v
	}
}
