package llm

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
)

var requestIDForm = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewRequestID_OpaqueHex(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if !requestIDForm.MatchString(id) {
			t.Fatalf("request id %q is not 32 lowercase hex chars", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("request id %q repeated", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewCallContext_GeneratesIDWhenEmpty(t *testing.T) {
	call := NewCallContext("")
	if !requestIDForm.MatchString(call.RequestID()) {
		t.Fatalf("generated id %q malformed", call.RequestID())
	}

	call = NewCallContext("fixed")
	if call.RequestID() != "fixed" {
		t.Fatalf("RequestID = %q, want fixed", call.RequestID())
	}
}

func TestCallContext_ConcurrentItems(t *testing.T) {
	call := NewCallContext("")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			call.SetItem(key, n)
			call.Item(key)
			call.BoolItem(ItemCacheHit)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		v, ok := call.Item(fmt.Sprintf("key-%d", i))
		if !ok || v.(int) != i {
			t.Fatalf("item key-%d = (%v, %v)", i, v, ok)
		}
	}
}

func TestBoolItem(t *testing.T) {
	call := NewCallContext("")
	if call.BoolItem(ItemCacheHit) {
		t.Fatal("absent key read as true")
	}
	call.SetItem(ItemCacheHit, true)
	if !call.BoolItem(ItemCacheHit) {
		t.Fatal("true item read as false")
	}
	call.SetItem(ItemCacheStored, "yes")
	if call.BoolItem(ItemCacheStored) {
		t.Fatal("non-bool item read as true")
	}
}
