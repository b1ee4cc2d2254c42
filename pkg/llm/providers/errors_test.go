package providers

import (
	"fmt"
	"testing"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

func TestTranslateStatus_Mapping(t *testing.T) {
	cases := []struct {
		status int
		want   llm.ErrorKind
	}{
		{400, llm.KindValidation},
		{422, llm.KindValidation},
		{401, llm.KindAuthorization},
		{403, llm.KindPermissionDenied},
		{402, llm.KindQuotaExceeded},
		{404, llm.KindProviderUnknown},
		{408, llm.KindTimeout},
		{409, llm.KindProviderUnavailable},
		{429, llm.KindRateLimited},
		{500, llm.KindProviderUnavailable},
		{502, llm.KindProviderUnavailable},
		{503, llm.KindProviderUnavailable},
		// Unenumerated statuses still produce a classified error.
		{418, llm.KindLLM},
		{451, llm.KindLLM},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			err := TranslateStatus(tc.status, nil, nil, "req-1")
			if err.Kind != tc.want {
				t.Fatalf("kind = %q, want %q", err.Kind, tc.want)
			}
			if err.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", err.StatusCode, tc.status)
			}
			if err.RequestID != "req-1" {
				t.Fatalf("request id = %q, want req-1", err.RequestID)
			}
		})
	}
}

func TestTranslateStatus_ErrorEnvelopes(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		wantMessage string
		wantCode    string
	}{
		{
			"openai object form",
			`{"error":{"message":"Rate limit reached","type":"rate_limit_error","code":"rate_limit_exceeded"}}`,
			"Rate limit reached",
			"rate_limit_exceeded",
		},
		{
			"type only",
			`{"error":{"message":"bad key","type":"invalid_request_error"}}`,
			"bad key",
			"invalid_request_error",
		},
		{
			"ollama string form",
			`{"error":"model 'nope' not found"}`,
			"model 'nope' not found",
			"",
		},
		{
			"numeric code kept as text",
			`{"error":{"message":"quota","code":1042}}`,
			"quota",
			"1042",
		},
		{
			"unparseable body",
			`<html>bad gateway</html>`,
			"provider returned HTTP 429",
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := TranslateStatus(429, []byte(tc.body), nil, "")
			if err.Message != tc.wantMessage {
				t.Fatalf("message = %q, want %q", err.Message, tc.wantMessage)
			}
			if err.ProviderCode != tc.wantCode {
				t.Fatalf("code = %q, want %q", err.ProviderCode, tc.wantCode)
			}
		})
	}
}

func TestTranslateStatus_RetryAfter(t *testing.T) {
	err := TranslateStatus(429, nil, map[string]string{"Retry-After": "2"}, "")
	if err.RetryAfter != 2*time.Second {
		t.Fatalf("RetryAfter = %v, want 2s", err.RetryAfter)
	}
	if !llm.IsRetryable(err) {
		t.Fatal("rate-limited error not retryable")
	}

	// Fractional seconds are honored.
	err = TranslateStatus(429, nil, map[string]string{"retry-after": "0.5"}, "")
	if err.RetryAfter != 500*time.Millisecond {
		t.Fatalf("RetryAfter = %v, want 500ms", err.RetryAfter)
	}

	// An HTTP-date header resolves to a positive remaining duration.
	at := time.Now().Add(30 * time.Second).UTC().Format(time.RFC1123)
	err = TranslateStatus(429, nil, map[string]string{"Retry-After": at}, "")
	if err.RetryAfter <= 0 || err.RetryAfter > 31*time.Second {
		t.Fatalf("RetryAfter = %v, want around 30s", err.RetryAfter)
	}

	// Retry-After is only read for rate limits.
	err = TranslateStatus(503, nil, map[string]string{"Retry-After": "2"}, "")
	if err.RetryAfter != 0 {
		t.Fatalf("RetryAfter on 503 = %v, want 0", err.RetryAfter)
	}
}
