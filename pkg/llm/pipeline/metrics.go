package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// MeterName is the stable meter identity for all pipeline instruments.
const MeterName = "LlmComms"

// Outcome values recorded on the outcome tag.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeWarning = "warning"
)

// Metrics records one request count and one duration sample per invocation,
// plus token histograms when counts are positive. Token histograms are gated
// by the EnableTokenUsageEvents option.
type Metrics struct {
	requests         metric.Int64Counter
	duration         metric.Float64Histogram
	promptTokens     metric.Int64Histogram
	completionTokens metric.Int64Histogram
	totalTokens      metric.Int64Histogram
}

// NewMetrics creates the metrics middleware against the global meter
// provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates the metrics middleware against an explicit
// meter provider. Tests use this with a manual reader.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(MeterName)

	requests, err := meter.Int64Counter("llm.requests.total",
		metric.WithUnit("{request}"),
		metric.WithDescription("Completed invocations"))
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}
	duration, err := meter.Float64Histogram("llm.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Invocation duration"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	prompt, err := meter.Int64Histogram("llm.tokens.prompt",
		metric.WithUnit("{token}"),
		metric.WithDescription("Prompt tokens per invocation"))
	if err != nil {
		return nil, fmt.Errorf("create prompt token histogram: %w", err)
	}
	completion, err := meter.Int64Histogram("llm.tokens.completion",
		metric.WithUnit("{token}"),
		metric.WithDescription("Completion tokens per invocation"))
	if err != nil {
		return nil, fmt.Errorf("create completion token histogram: %w", err)
	}
	total, err := meter.Int64Histogram("llm.tokens.total",
		metric.WithUnit("{token}"),
		metric.WithDescription("Total tokens per invocation"))
	if err != nil {
		return nil, fmt.Errorf("create total token histogram: %w", err)
	}

	return &Metrics{
		requests:         requests,
		duration:         duration,
		promptTokens:     prompt,
		completionTokens: completion,
		totalTokens:      total,
	}, nil
}

// Name implements Middleware.
func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) record(ctx context.Context, ec *llm.ExecutionContext, elapsed time.Duration, outcome string, finish llm.FinishReason, errType string, usage llm.Usage) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", ec.Provider.Name()),
		attribute.String("model", ec.Model.ID),
		attribute.Bool("streaming", ec.Streaming),
		attribute.String("outcome", outcome),
	}
	if finish != "" {
		attrs = append(attrs, attribute.String("finish_reason", string(finish)))
	}
	if errType != "" {
		attrs = append(attrs, attribute.String("error_type", errType))
	}
	opt := metric.WithAttributes(attrs...)

	m.requests.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, opt)

	if !ec.Options.EnableTokenUsageEvents {
		return
	}
	if usage.PromptTokens > 0 {
		m.promptTokens.Record(ctx, int64(usage.PromptTokens), opt)
	}
	if usage.CompletionTokens > 0 {
		m.completionTokens.Record(ctx, int64(usage.CompletionTokens), opt)
	}
	if usage.TotalTokens > 0 {
		m.totalTokens.Record(ctx, int64(usage.TotalTokens), opt)
	}
}

// Handle implements Middleware.
func (m *Metrics) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	started := time.Now()
	resp, err := next(ctx, ec)
	elapsed := time.Since(started)
	if err != nil {
		m.record(ctx, ec, elapsed, OutcomeFailure, "", string(llm.KindOf(err)), llm.Usage{})
		return nil, err
	}
	m.record(ctx, ec, elapsed, OutcomeSuccess, resp.FinishReason, "", resp.Usage)
	return resp, nil
}

// HandleStream implements Middleware. Usage is aggregated across complete
// events and recorded once the inner stream closes. A consumer that cancels
// the context and stops draining records a failure immediately.
func (m *Metrics) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	started := time.Now()
	in, err := next(ctx, ec)
	if err != nil {
		m.record(ctx, ec, time.Since(started), OutcomeFailure, "", string(llm.KindOf(err)), llm.Usage{})
		return nil, err
	}

	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)

		var usage llm.Usage
		failed := false
		errType := ""
		for ev := range in {
			switch ev.Kind {
			case llm.EventComplete:
				if ev.Usage != nil {
					usage.Add(*ev.Usage)
				}
			case llm.EventError:
				failed = true
				errType = string(llm.KindOf(ev.Err))
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				m.record(ctx, ec, time.Since(started), OutcomeFailure, "", string(llm.KindOf(ctx.Err())), usage)
				return
			}
		}

		outcome := OutcomeSuccess
		finish := llm.FinishStop
		if failed {
			outcome = OutcomeWarning
			finish = ""
		}
		m.record(ctx, ec, time.Since(started), outcome, finish, errType, usage)
	}()
	return out, nil
}
