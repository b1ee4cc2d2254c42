package cache

import (
	"sync"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

type memoryEntry struct {
	resp      *llm.Response
	expiresAt time.Time
}

// Memory is the in-memory ResponseCache. Entries expire lazily: an expired
// entry is removed on the read that observes it. Responses are cloned on both
// store and read so the cache never shares memory with callers.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements ResponseCache.
func (m *Memory) Get(key string) *llm.Response {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Recheck under the write lock; a concurrent Set may have refreshed
		// the entry.
		if current, ok := m.entries[key]; ok && m.now().After(current.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil
	}
	return entry.resp.Clone()
}

// Set implements ResponseCache.
func (m *Memory) Set(key string, resp *llm.Response, ttl time.Duration) {
	if resp == nil || ttl <= 0 {
		return
	}
	entry := memoryEntry{
		resp:      resp.Clone(),
		expiresAt: m.now().Add(ttl),
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

// Remove implements ResponseCache.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len reports the number of stored entries, including not-yet-collected
// expired ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
