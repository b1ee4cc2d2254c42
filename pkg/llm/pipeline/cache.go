package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/cache"
)

// DefaultCacheTTL applies when no hint overrides the entry lifetime.
const DefaultCacheTTL = 5 * time.Minute

// Cache serves repeated unary requests from a response cache keyed by
// provider, model, and the canonical request hash. The streaming path passes
// through untouched. Responses carrying tool calls are never stored; tool
// invocations are side-effecting by contract.
type Cache struct {
	store      cache.ResponseCache
	defaultTTL time.Duration
}

// NewCache creates the cache middleware. A non-positive defaultTTL falls back
// to DefaultCacheTTL.
func NewCache(store cache.ResponseCache, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	return &Cache{store: store, defaultTTL: defaultTTL}
}

// Name implements Middleware.
func (c *Cache) Name() string { return "cache" }

// Handle implements Middleware. Bypassed invocations set no llm.cache.*
// items at all.
func (c *Cache) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	if llm.HintBool(ec.Request.ProviderHints, llm.HintNoCache) {
		return next(ctx, ec)
	}

	key, err := c.key(ec)
	if err != nil {
		return next(ctx, ec)
	}

	if cached := c.store.Get(key); cached != nil {
		ec.Call.SetItem(llm.ItemCacheHit, true)
		return cached, nil
	}

	resp, err := next(ctx, ec)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl(ec.Request.ProviderHints)
	if len(resp.ToolCalls) == 0 && ttl > 0 {
		c.store.Set(key, resp, ttl)
		ec.Call.SetItem(llm.ItemCacheStored, true)
	}
	return resp, nil
}

// HandleStream implements Middleware. Streaming responses are never cached.
func (c *Cache) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	return next(ctx, ec)
}

func (c *Cache) key(ec *llm.ExecutionContext) (string, error) {
	hash, err := ec.RequestHash()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s", ec.Provider.Name(), ec.Model.ID, hash), nil
}

// ttl resolves the entry lifetime: cache_ttl_seconds hint, then cache_ttl
// hint, then the construction-time default.
func (c *Cache) ttl(hints map[string]any) time.Duration {
	if d := llm.HintSeconds(hints, llm.HintCacheTTLSeconds); d > 0 {
		return d
	}
	if d := llm.HintSeconds(hints, llm.HintCacheTTL); d > 0 {
		return d
	}
	return c.defaultTTL
}
