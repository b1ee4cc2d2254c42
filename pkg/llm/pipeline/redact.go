package pipeline

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// previewLimit bounds the sanitized preview published for log consumption.
const previewLimit = 160

// redactRule masks one class of sensitive content.
type redactRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// defaultRedactRules are applied in order. Credentials first so an API key
// containing digits is not half-eaten by the phone rule.
var defaultRedactRules = []redactRule{
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer)[\s:=]+\S+`), "$1=[REDACTED]"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "***@***"},
	{regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`), "***-***-****"},
}

// Redaction produces a masked copy of the request messages for downstream
// log consumption and always publishes a short sanitized preview. The
// original request is never touched.
type Redaction struct {
	rules []redactRule
}

// NewRedaction creates the redaction middleware with the default rule set.
func NewRedaction() *Redaction {
	return &Redaction{rules: defaultRedactRules}
}

// Name implements Middleware.
func (r *Redaction) Name() string { return "redaction" }

// Handle implements Middleware.
func (r *Redaction) Handle(ctx context.Context, ec *llm.ExecutionContext, next Handler) (*llm.Response, error) {
	r.publish(ec)
	return next(ctx, ec)
}

// HandleStream implements Middleware.
func (r *Redaction) HandleStream(ctx context.Context, ec *llm.ExecutionContext, next StreamHandler) (<-chan llm.StreamEvent, error) {
	r.publish(ec)
	return next(ctx, ec)
}

func (r *Redaction) publish(ec *llm.ExecutionContext) {
	if ec.Options.EnableRedaction {
		masked := make([]llm.Message, len(ec.Request.Messages))
		for i, msg := range ec.Request.Messages {
			masked[i] = llm.Message{Role: msg.Role, Content: r.mask(msg.Content)}
		}
		ec.Call.SetItem(llm.ItemRedactedMessages, masked)
	}
	ec.Call.SetItem(llm.ItemRedactedPreview, r.preview(ec.Request.Messages))
}

func (r *Redaction) mask(content string) string {
	for _, rule := range r.rules {
		content = rule.pattern.ReplaceAllString(content, rule.replacement)
	}
	return content
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// preview builds a sanitized excerpt from the last one or two messages:
// whitespace collapsed, masked, snippets joined with " | ", trimmed to 160
// characters.
func (r *Redaction) preview(messages []llm.Message) string {
	start := len(messages) - 2
	if start < 0 {
		start = 0
	}
	var snippets []string
	for _, msg := range messages[start:] {
		s := strings.TrimSpace(whitespaceRun.ReplaceAllString(msg.Content, " "))
		if s == "" {
			continue
		}
		snippets = append(snippets, r.mask(s))
	}
	joined := strings.Join(snippets, " | ")
	if len(joined) > previewLimit {
		cut := previewLimit
		// Never split a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}
