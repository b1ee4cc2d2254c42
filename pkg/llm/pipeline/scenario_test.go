package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/cache"
)

// fullChain assembles the complete default order with observable sinks.
func fullChain(t *testing.T, store cache.ResponseCache) (*Chain, *sdkmetric.ManualReader, *bytes.Buffer) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetricsWithProvider(meterProvider)
	if err != nil {
		t.Fatalf("NewMetricsWithProvider: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	chain, err := NewBuilder().
		Use(NewTracing()).
		Use(NewRedaction()).
		Use(NewLogging(logger)).
		Use(metrics).
		Use(NewCache(store, time.Minute)).
		Use(NewValidator()).
		Use(NewProviderTerminal()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return chain, reader, &buf
}

// The unary happy path: a json_object request flows through every built-in
// middleware, the response bubbles unchanged, and every observer records it.
func TestScenario_UnaryHappyPath(t *testing.T) {
	store := cache.NewMemory()
	chain, reader, buf := fullChain(t, store)
	provider := &fakeProvider{
		name: "fake",
		caps: llm.Capabilities{SupportsJSONMode: true},
		response: &llm.Response{
			Output:       llm.Message{Role: llm.RoleAssistant, Content: `{"status":"ok"}`},
			Usage:        llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			FinishReason: llm.FinishStop,
		},
	}
	req := &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are concise."},
			{Role: llm.RoleUser, Content: "Hello"},
		},
		ResponseFormat: llm.FormatJSONObject,
	}

	ec := testContext(provider, req, false)
	resp, err := chain.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if resp.Output.Content != `{"status":"ok"}` {
		t.Fatalf("content = %q", resp.Output.Content)
	}
	if resp.Usage != (llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}) {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if _, annotated := resp.Raw[RawJSONInvalid]; annotated {
		t.Fatal("validator annotated a valid object")
	}
	if !ec.Call.BoolItem(llm.ItemCacheStored) {
		t.Fatal("llm.cache.stored not published")
	}

	hash, err := ec.RequestHash()
	if err != nil {
		t.Fatalf("RequestHash: %v", err)
	}
	if store.Get("fake:test-model:"+hash) == nil {
		t.Fatal("response not stored under <provider>:<model>:<hash>")
	}

	metrics := collect(t, reader)
	if got := counterValue(t, metrics["llm.requests.total"]); got != 1 {
		t.Fatalf("llm.requests.total = %d, want 1", got)
	}
	for _, name := range []string{"llm.tokens.prompt", "llm.tokens.completion", "llm.tokens.total"} {
		if samples, _ := histogramCount(t, metrics[name]); samples != 1 {
			t.Fatalf("%s samples = %d, want 1", name, samples)
		}
	}

	lines := logLines(t, buf)
	if _, ok := findEvent(lines, "request.start"); !ok {
		t.Fatal("request.start missing")
	}
	if _, ok := findEvent(lines, "request.success"); !ok {
		t.Fatal("request.success missing")
	}
}

// A strict validation failure must not reach the cache, and the observers
// must record a failure outcome.
func TestScenario_StrictFailureSkipsCache(t *testing.T) {
	store := cache.NewMemory()
	chain, reader, buf := fullChain(t, store)
	provider := &fakeProvider{name: "fake", response: okResponse(`"{not json`)}
	req := &llm.Request{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.FormatJSONObject,
	}

	_, err := chain.Execute(context.Background(), testContext(provider, req, false))
	if !llm.IsKind(err, llm.KindValidation) {
		t.Fatalf("error kind = %q, want validation", llm.KindOf(err))
	}
	if store.Len() != 0 {
		t.Fatal("failed response was cached")
	}

	metrics := collect(t, reader)
	_, attrSets := histogramCount(t, metrics["llm.request.duration"])
	for _, set := range attrSets {
		if v, ok := set.Value("outcome"); !ok || v.AsString() != OutcomeFailure {
			t.Fatalf("outcome = %v, want failure", v)
		}
		if v, ok := set.Value("error_type"); !ok || v.AsString() != string(llm.KindValidation) {
			t.Fatalf("error_type = %v, want validation", v)
		}
	}

	lines := logLines(t, buf)
	if _, ok := findEvent(lines, "request.failure"); !ok {
		t.Fatal("request.failure missing")
	}
}

// lockedBuffer is an io.Writer the test can read while pipeline goroutines
// may still be logging.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// A consumer that cancels the context and walks away mid-stream must release
// every forwarding goroutine and still record the invocation as a failure.
func TestScenario_CanceledConsumerReleasesStream(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetricsWithProvider(meterProvider)
	if err != nil {
		t.Fatalf("NewMetricsWithProvider: %v", err)
	}
	logBuf := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	chain, err := NewBuilder().
		Use(NewTracing()).
		Use(NewRedaction()).
		Use(NewLogging(logger)).
		Use(metrics).
		Use(NewCache(cache.NewMemory(), time.Minute)).
		Use(NewValidator()).
		Use(NewProviderTerminal()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var seq []llm.StreamEvent
	for i := 0; i < 8; i++ {
		seq = append(seq, llm.Delta("x"))
	}
	seq = append(seq, llm.Complete(llm.Usage{PromptTokens: 2, CompletionTokens: 8}))
	provider := &fakeProvider{name: "fake", streamSeqs: [][]llm.StreamEvent{seq}}
	req := &llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}

	before := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := chain.ExecuteStream(ctx, testContext(provider, req, true))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	<-events
	cancel()
	// The rest of the stream is deliberately never read.

	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("forwarding goroutines still alive: %d, started with %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(5 * time.Millisecond)
	}

	collected := collect(t, reader)
	if got := counterValue(t, collected["llm.requests.total"]); got != 1 {
		t.Fatalf("llm.requests.total = %d, want 1", got)
	}
	_, attrSets := histogramCount(t, collected["llm.request.duration"])
	for _, set := range attrSets {
		if v, ok := set.Value("outcome"); !ok || v.AsString() != OutcomeFailure {
			t.Fatalf("outcome = %v, want failure", v)
		}
		if v, ok := set.Value("error_type"); !ok || v.AsString() != "canceled" {
			t.Fatalf("error_type = %v, want canceled", v)
		}
	}

	lines := logLines(t, bytes.NewBufferString(logBuf.String()))
	failure, ok := findEvent(lines, "request.failure")
	if !ok {
		t.Fatal("request.failure not logged")
	}
	if failure["error_kind"] != "canceled" {
		t.Fatalf("error_kind = %v, want canceled", failure["error_kind"])
	}
}

// Delta events must reach the caller in provider emission order through the
// whole observing stack.
func TestScenario_StreamOrderPreserved(t *testing.T) {
	store := cache.NewMemory()
	chain, _, _ := fullChain(t, store)

	deltas := []string{"a", "b", "c", "d", "e"}
	var seq []llm.StreamEvent
	for _, d := range deltas {
		seq = append(seq, llm.Delta(d))
	}
	seq = append(seq, llm.Complete(llm.Usage{PromptTokens: 2, CompletionTokens: 5}))

	provider := &fakeProvider{name: "fake", streamSeqs: [][]llm.StreamEvent{seq}}
	req := &llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}

	events, err := chain.ExecuteStream(context.Background(), testContext(provider, req, true))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	got := drain(events)

	var gotDeltas []string
	terminals := 0
	for _, ev := range got {
		if ev.Kind == llm.EventDelta {
			gotDeltas = append(gotDeltas, ev.TextDelta)
		}
		if ev.IsTerminal {
			terminals++
		}
	}
	if len(gotDeltas) != len(deltas) {
		t.Fatalf("deltas = %v, want %v", gotDeltas, deltas)
	}
	for i := range deltas {
		if gotDeltas[i] != deltas[i] {
			t.Fatalf("delta[%d] = %q, want %q", i, gotDeltas[i], deltas[i])
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want 1", terminals)
	}
	last := got[len(got)-1]
	if last.Kind != llm.EventComplete || !last.IsTerminal {
		t.Fatalf("last event = %+v, want terminal complete", last)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 7 {
		t.Fatalf("final usage = %+v, want total 7", last.Usage)
	}
}
