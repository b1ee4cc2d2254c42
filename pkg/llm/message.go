package llm

// Role identifies the author of a message in a conversation.
type Role string

const (
	// RoleSystem is the system prompt role.
	RoleSystem Role = "system"

	// RoleUser is the end-user role.
	RoleUser Role = "user"

	// RoleAssistant is the model's own role.
	RoleAssistant Role = "assistant"

	// RoleFunction is the legacy function-result role. It maps to "tool" on
	// the wire for every supported vendor.
	RoleFunction Role = "function"

	// RoleTool is the tool-result role.
	RoleTool Role = "tool"
)

// Message is a single conversation turn: a role and its textual content.
//
// Messages are value types and are never mutated after construction. Two
// messages are equivalent iff both fields are equal.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// WireRole maps a Role to the canonical wire-format role string shared by all
// supported vendors: system, user, assistant, and tool. The function role maps
// to "tool". Unknown roles fall back to "user".
//
// The mapping is total and idempotent: applying it to its own output yields
// the same value.
func WireRole(r Role) string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleFunction, RoleTool:
		return "tool"
	default:
		return "user"
	}
}
