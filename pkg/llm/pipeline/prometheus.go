package pipeline

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// PrometheusBridge is an optional custom middleware for deployments that
// scrape Prometheus directly instead of running an OTel collector. It mirrors
// the core instruments under llmcomms_* metric names and registers them on
// the given registerer.
type PrometheusBridge struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.HistogramVec
}

// NewPrometheusBridge creates the bridge. A nil registerer uses the default
// registry.
func NewPrometheusBridge(reg prometheus.Registerer) *PrometheusBridge {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"provider", "model", "streaming", "outcome"}
	return &PrometheusBridge{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmcomms_requests_total",
			Help: "Completed invocations by provider, model, and outcome.",
		}, labels),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmcomms_request_duration_seconds",
			Help:    "Invocation duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, labels),
		tokens: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmcomms_tokens",
			Help:    "Token counts per invocation by direction.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 14),
		}, append(labels, "direction")),
	}
}

// Name implements Middleware.
func (p *PrometheusBridge) Name() string { return "prometheus_bridge" }

func (p *PrometheusBridge) observe(ec *llm.ExecutionContext, elapsed time.Duration, outcome string, usage llm.Usage) {
	streaming := "false"
	if ec.Streaming {
		streaming = "true"
	}
	provider := ec.Provider.Name()
	model := ec.Model.ID

	p.requests.WithLabelValues(provider, model, streaming, outcome).Inc()
	p.duration.WithLabelValues(provider, model, streaming, outcome).Observe(elapsed.Seconds())
	if usage.PromptTokens > 0 {
		p.tokens.WithLabelValues(provider, model, streaming, outcome, "prompt").Observe(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		p.tokens.WithLabelValues(provider, model, streaming, outcome, "completion").Observe(float64(usage.CompletionTokens))
	}
}

// Handle implements Middleware.
func (p *PrometheusBridge) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	started := time.Now()
	resp, err := next(ctx, ec)
	if err != nil {
		p.observe(ec, time.Since(started), OutcomeFailure, llm.Usage{})
		return nil, err
	}
	p.observe(ec, time.Since(started), OutcomeSuccess, resp.Usage)
	return resp, nil
}

// HandleStream implements Middleware.
func (p *PrometheusBridge) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	started := time.Now()
	in, err := next(ctx, ec)
	if err != nil {
		p.observe(ec, time.Since(started), OutcomeFailure, llm.Usage{})
		return nil, err
	}

	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)
		var usage llm.Usage
		outcome := OutcomeSuccess
		for ev := range in {
			switch ev.Kind {
			case llm.EventComplete:
				if ev.Usage != nil {
					usage.Add(*ev.Usage)
				}
			case llm.EventError:
				outcome = OutcomeWarning
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				p.observe(ec, time.Since(started), OutcomeFailure, usage)
				return
			}
		}
		p.observe(ec, time.Since(started), outcome, usage)
	}()
	return out, nil
}
