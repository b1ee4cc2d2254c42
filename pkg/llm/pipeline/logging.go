package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Stable event ids so downstream consumers can filter without string
// matching.
const (
	EventIDRequestStart   = 1001
	EventIDRequestSuccess = 1002
	EventIDRequestFailure = 1003
	EventIDRequestWarning = 1004
)

// Logging emits structured request lifecycle events: request.start on entry,
// then request.success, request.failure, or request.warning depending on
// outcome. Content never reaches the log; only the sanitized preview
// published by the redaction middleware is used, and only at debug level.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates the logging middleware. A nil logger falls back to
// slog.Default.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

// Name implements Middleware.
func (l *Logging) Name() string { return "logging" }

func (l *Logging) logStart(ctx context.Context, ec *llm.ExecutionContext) {
	hash, err := ec.RequestHash()
	if err != nil {
		hash = ""
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "request.start",
		slog.Int("event_id", EventIDRequestStart),
		slog.String("request_id", ec.Call.RequestID()),
		slog.String("provider", ec.Provider.Name()),
		slog.String("model", ec.Model.ID),
		slog.Bool("streaming", ec.Streaming),
		slog.Int("message_count", len(ec.Request.Messages)),
		slog.String("request_hash", hash),
	)
	if l.logger.Enabled(ctx, slog.LevelDebug) {
		if v, ok := ec.Call.Item(llm.ItemRedactedPreview); ok {
			if preview, ok := v.(string); ok && preview != "" {
				l.logger.LogAttrs(ctx, slog.LevelDebug, "request.preview",
					slog.String("request_id", ec.Call.RequestID()),
					slog.String("preview", preview),
				)
			}
		}
	}
}

// Handle implements Middleware.
func (l *Logging) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	l.logStart(ctx, ec)
	started := time.Now()

	resp, err := next(ctx, ec)
	elapsed := time.Since(started)
	if err != nil {
		l.logger.LogAttrs(ctx, slog.LevelError, "request.failure",
			slog.Int("event_id", EventIDRequestFailure),
			slog.String("request_id", ec.Call.RequestID()),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("error_kind", string(llm.KindOf(err))),
		)
		return nil, err
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, "request.success",
		slog.Int("event_id", EventIDRequestSuccess),
		slog.String("request_id", ec.Call.RequestID()),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.String("finish_reason", string(resp.FinishReason)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp, nil
}

// HandleStream implements Middleware. Outcome is logged when the inner
// stream closes: success when no error event was seen, warning otherwise.
func (l *Logging) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	l.logStart(ctx, ec)
	started := time.Now()

	in, err := next(ctx, ec)
	if err != nil {
		l.logger.LogAttrs(ctx, slog.LevelError, "request.failure",
			slog.Int("event_id", EventIDRequestFailure),
			slog.String("request_id", ec.Call.RequestID()),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			slog.String("error_kind", string(llm.KindOf(err))),
		)
		return nil, err
	}

	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)

		var usage llm.Usage
		terminalSeen := false
		failed := false
		errKind := ""
		for ev := range in {
			if ev.IsTerminal {
				terminalSeen = true
			}
			switch ev.Kind {
			case llm.EventComplete:
				if ev.Usage != nil {
					usage.Add(*ev.Usage)
				}
			case llm.EventError:
				failed = true
				errKind = string(llm.KindOf(ev.Err))
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				l.logger.LogAttrs(ctx, slog.LevelError, "request.failure",
					slog.Int("event_id", EventIDRequestFailure),
					slog.String("request_id", ec.Call.RequestID()),
					slog.Int64("duration_ms", time.Since(started).Milliseconds()),
					slog.String("error_kind", string(llm.KindOf(ctx.Err()))),
				)
				return
			}
		}

		elapsed := time.Since(started)
		if failed {
			l.logger.LogAttrs(ctx, slog.LevelWarn, "request.warning",
				slog.Int("event_id", EventIDRequestWarning),
				slog.String("request_id", ec.Call.RequestID()),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.String("error_kind", errKind),
				slog.Bool("terminal_seen", terminalSeen),
			)
			return
		}
		l.logger.LogAttrs(ctx, slog.LevelInfo, "request.success",
			slog.Int("event_id", EventIDRequestSuccess),
			slog.String("request_id", ec.Call.RequestID()),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.Int("prompt_tokens", usage.PromptTokens),
			slog.Int("completion_tokens", usage.CompletionTokens),
			slog.Int("total_tokens", usage.TotalTokens),
			slog.Bool("terminal_seen", terminalSeen),
		)
	}()
	return out, nil
}
