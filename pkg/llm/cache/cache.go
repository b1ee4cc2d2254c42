// Package cache holds the response cache contract and the in-memory
// reference implementation used by the pipeline's cache middleware.
package cache

import (
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// ResponseCache stores normalized responses keyed by
// <provider>:<model>:<requestHash>. Implementations must be safe for
// concurrent readers and writers, treat expired entries as absent, and hand
// out copies the caller may mutate freely.
type ResponseCache interface {
	// Get returns the cached response for key, or nil when absent or expired.
	Get(key string) *llm.Response

	// Set stores a copy of the response for ttl. A non-positive ttl is a
	// no-op.
	Set(key string, resp *llm.Response, ttl time.Duration)

	// Remove deletes the entry for key, if any.
	Remove(key string)
}
