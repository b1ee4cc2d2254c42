// Package providers holds the rules every adapter shares: wire-format
// request shaping, response normalization, stream frame parsing, and HTTP
// status translation into the error taxonomy. The vendor adapters in the
// subpackages build on these and add only their endpoint specifics.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// wireError covers the two error envelopes the supported vendors emit: the
// OpenAI object form {"error": {"message", "type", "code"}} and the Ollama
// bare-string form {"error": "..."}.
type wireError struct {
	Error json.RawMessage `json:"error"`
}

type wireErrorDetail struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

// parseErrorBody extracts a human message and provider code from an error
// response body. Both may be empty.
func parseErrorBody(body []byte) (message, code string) {
	var envelope wireError
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return "", ""
	}

	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		return s, ""
	}

	var detail wireErrorDetail
	if err := json.Unmarshal(envelope.Error, &detail); err != nil {
		return "", ""
	}
	code = detail.Type
	if len(detail.Code) > 0 {
		var codeStr string
		if err := json.Unmarshal(detail.Code, &codeStr); err == nil {
			code = codeStr
		} else {
			code = string(detail.Code)
		}
	}
	return detail.Message, code
}

// parseRetryAfter reads a Retry-After header holding either delay seconds or
// an HTTP date.
func parseRetryAfter(headers map[string]string) time.Duration {
	value := headers["Retry-After"]
	if value == "" {
		value = headers["retry-after"]
	}
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// TranslateStatus maps a non-2xx HTTP exchange into the error taxonomy. The
// mapping is total: statuses outside the enumerated set produce a generic
// error carrying the status code.
func TranslateStatus(status int, body []byte, headers map[string]string, requestID string) *llm.Error {
	message, code := parseErrorBody(body)
	if message == "" {
		message = fmt.Sprintf("provider returned HTTP %d", status)
	}

	var kind llm.ErrorKind
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = llm.KindValidation
	case status == http.StatusUnauthorized:
		kind = llm.KindAuthorization
	case status == http.StatusForbidden:
		kind = llm.KindPermissionDenied
	case status == http.StatusPaymentRequired:
		kind = llm.KindQuotaExceeded
	case status == http.StatusNotFound:
		kind = llm.KindProviderUnknown
	case status == http.StatusRequestTimeout:
		kind = llm.KindTimeout
	case status == http.StatusConflict:
		kind = llm.KindProviderUnavailable
	case status == http.StatusTooManyRequests:
		kind = llm.KindRateLimited
	case status >= 500:
		kind = llm.KindProviderUnavailable
	default:
		kind = llm.KindLLM
	}

	err := llm.NewError(kind, message).
		WithStatus(status).
		WithRequestID(requestID).
		WithProviderCode(code)
	if kind == llm.KindRateLimited {
		if after := parseRetryAfter(headers); after > 0 {
			err = err.WithRetryAfter(after)
		}
	}
	return err
}
