package llm

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Context item keys readable by external middlewares. Built-in middlewares
// publish sideband artifacts under these keys.
const (
	// ItemRedactedMessages holds the masked []Message copy produced by the
	// redaction middleware when redaction is enabled.
	ItemRedactedMessages = "llm.redacted.messages"

	// ItemRedactedPreview holds the sanitized preview string. Always present
	// after the redaction middleware has run.
	ItemRedactedPreview = "llm.redacted.preview"

	// ItemCacheHit is true when the cache middleware short-circuited.
	ItemCacheHit = "llm.cache.hit"

	// ItemCacheStored is true when the cache middleware stored the response.
	ItemCacheStored = "llm.cache.stored"

	// ItemJSONInvalid is true when lenient streaming validation found the
	// accumulated text not to be a JSON object.
	ItemJSONInvalid = "llm.validation.json_invalid"

	// ItemToolMismatch is true when lenient streaming validation found a tool
	// call that violates the declared collection.
	ItemToolMismatch = "llm.validation.tool_mismatch"

	// itemRequestHash memoizes the request hash within one invocation.
	itemRequestHash = "llm.request.hash"
)

// CallContext is the per-invocation sideband: an opaque request id plus a
// mutable bag of items middlewares use to publish artifacts to one another
// and to external observers. It lives for exactly one client invocation.
//
// CallContext is safe for concurrent use; streaming middlewares touch it from
// forwarding goroutines.
type CallContext struct {
	requestID string

	mu    sync.RWMutex
	items map[string]any
}

// NewCallContext creates a call context with the given request id. An empty
// id is replaced with a freshly generated one.
func NewCallContext(requestID string) *CallContext {
	if requestID == "" {
		requestID = NewRequestID()
	}
	return &CallContext{
		requestID: requestID,
		items:     make(map[string]any),
	}
}

// RequestID returns the opaque 32-character hex request id.
func (c *CallContext) RequestID() string { return c.requestID }

// SetItem publishes an item.
func (c *CallContext) SetItem(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// Item reads an item.
func (c *CallContext) Item(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// BoolItem reads an item as a bool, returning false when absent or not a bool.
func (c *CallContext) BoolItem(key string) bool {
	v, ok := c.Item(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// NewRequestID generates an opaque 32-character lowercase hex request id.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ExecutionContext travels through the middleware chain by reference. A
// middleware may replace Request with a derived copy but must not swap the
// other references.
type ExecutionContext struct {
	// Provider is the adapter handling this invocation.
	Provider Provider

	// Model is the opaque model handle.
	Model ProviderModel

	// Request is the current request. Middlewares that transform it assign a
	// clone; the caller's original is never mutated.
	Request *Request

	// Call is the per-invocation sideband context.
	Call *CallContext

	// Options is the client options snapshot taken at build time.
	Options ClientOptions

	// Streaming is true on the streaming path.
	Streaming bool
}

// RequestHash returns the canonical hash of the current request, memoized in
// the call context so the logging and cache middlewares share one
// computation.
func (ec *ExecutionContext) RequestHash() (string, error) {
	if v, ok := ec.Call.Item(itemRequestHash); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	h, err := HashRequest(ec.Request)
	if err != nil {
		return "", err
	}
	ec.Call.SetItem(itemRequestHash, h)
	return h, nil
}
