package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

const tracerName = "github.com/haasonsaas/llmcomms"

// Tracing wraps each invocation in a client span named
// llm.<provider>.<model> and propagates the request id as baggage. On the
// streaming path it accumulates usage across complete events and closes the
// span when the stream ends.
type Tracing struct {
	tracer oteltrace.Tracer
}

// NewTracing creates the tracing middleware against the global tracer
// provider.
func NewTracing() *Tracing {
	return &Tracing{tracer: otel.Tracer(tracerName)}
}

// Name implements Middleware.
func (t *Tracing) Name() string { return "tracing" }

func (t *Tracing) startSpan(ctx context.Context, ec *llm.ExecutionContext) (context.Context, oteltrace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", ec.Provider.Name()),
		attribute.String("llm.model", ec.Model.ID),
		attribute.String("llm.request_id", ec.Call.RequestID()),
		attribute.Bool("llm.streaming", ec.Streaming),
	}
	if ec.Request.Temperature != nil {
		attrs = append(attrs, attribute.Float64("llm.temperature", float64(*ec.Request.Temperature)))
	}
	if ec.Request.MaxOutputTokens > 0 {
		attrs = append(attrs, attribute.Int("llm.max_output_tokens", ec.Request.MaxOutputTokens))
	}

	if member, err := baggage.NewMember("llm.request_id", ec.Call.RequestID()); err == nil {
		if bag, err := baggage.FromContext(ctx).SetMember(member); err == nil {
			ctx = baggage.ContextWithBaggage(ctx, bag)
		}
	}

	name := fmt.Sprintf("llm.%s.%s", ec.Provider.Name(), ec.Model.ID)
	return t.tracer.Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attrs...),
	)
}

// Handle implements Middleware.
func (t *Tracing) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	ctx, span := t.startSpan(ctx, ec)
	defer span.End()

	resp, err := next(ctx, ec)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("llm.error_kind", string(llm.KindOf(err))))
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(
		attribute.String("llm.finish_reason", string(resp.FinishReason)),
		attribute.Int("llm.tokens.prompt", resp.Usage.PromptTokens),
		attribute.Int("llm.tokens.completion", resp.Usage.CompletionTokens),
		attribute.Int("llm.tokens.total", resp.Usage.TotalTokens),
	)
	return resp, nil
}

// HandleStream implements Middleware. The span stays open until the inner
// stream closes.
func (t *Tracing) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	ctx, span := t.startSpan(ctx, ec)

	in, err := next(ctx, ec)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("llm.error_kind", string(llm.KindOf(err))))
		span.End()
		return nil, err
	}

	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)
		defer span.End()

		var usage llm.Usage
		failed := false
		for ev := range in {
			switch ev.Kind {
			case llm.EventComplete:
				if ev.Usage != nil {
					usage.Add(*ev.Usage)
				}
			case llm.EventError:
				failed = true
				if ev.Err != nil {
					span.SetAttributes(attribute.String("llm.error_kind", string(llm.KindOf(ev.Err))))
				}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				span.SetStatus(codes.Error, ctx.Err().Error())
				span.SetAttributes(attribute.String("llm.error_kind", string(llm.KindOf(ctx.Err()))))
				return
			}
		}

		if failed {
			span.SetStatus(codes.Error, "stream reported error event")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(
			attribute.Int("llm.tokens.prompt", usage.PromptTokens),
			attribute.Int("llm.tokens.completion", usage.CompletionTokens),
			attribute.Int("llm.tokens.total", usage.TotalTokens),
		)
	}()
	return out, nil
}
