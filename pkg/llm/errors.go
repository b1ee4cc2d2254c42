package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorKind categorizes a failure for retry, failover, and reporting logic.
type ErrorKind string

const (
	// KindValidation covers malformed requests and failed response
	// validation (HTTP 400/422). Never retryable.
	KindValidation ErrorKind = "validation"

	// KindAuthorization covers missing or invalid credentials (HTTP 401).
	KindAuthorization ErrorKind = "authorization"

	// KindPermissionDenied covers policy and permission rejections (HTTP 403).
	KindPermissionDenied ErrorKind = "permission_denied"

	// KindQuotaExceeded covers billing and quota exhaustion (HTTP 402).
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	// KindRateLimited covers throttling (HTTP 429). Carries RetryAfter when
	// the provider supplied one.
	KindRateLimited ErrorKind = "rate_limited"

	// KindProviderUnavailable covers upstream 5xx and conflict responses.
	KindProviderUnavailable ErrorKind = "provider_unavailable"

	// KindProviderUnknown covers unknown providers or models (HTTP 404).
	KindProviderUnknown ErrorKind = "provider_unknown"

	// KindTimeout covers deadline expiry, locally or upstream (HTTP 408).
	KindTimeout ErrorKind = "timeout"

	// KindNotSupported covers capability rejections, e.g. streaming against
	// a provider that does not advertise it.
	KindNotSupported ErrorKind = "not_supported"

	// KindLLM is the generic supertype for failures that fit no other kind.
	KindLLM ErrorKind = "llm"
)

// Error is the structured error every surfaced failure resolves to. It
// carries the categorization kind plus the correlation fields callers need:
// originating request id and, where known, HTTP status and provider code.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Message is the human-readable description.
	Message string

	// RequestID is the id of the originating invocation, when known.
	RequestID string

	// StatusCode is the HTTP status, when the failure came off the wire.
	StatusCode int

	// ProviderCode is the provider-specific error code, when present.
	ProviderCode string

	// RetryAfter is the provider-suggested retry delay for rate limits.
	RetryAfter time.Duration

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.RequestID != "" {
		parts = append(parts, fmt.Sprintf("request=%s", e.RequestID))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.ProviderCode != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.ProviderCode))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates an Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithRequestID sets the originating request id.
func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

// WithStatus sets the HTTP status code.
func (e *Error) WithStatus(status int) *Error {
	e.StatusCode = status
	return e
}

// WithProviderCode sets the provider-specific error code.
func (e *Error) WithProviderCode(code string) *Error {
	e.ProviderCode = code
	return e
}

// WithRetryAfter sets the provider-suggested retry delay.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// KindOf returns the kind of an error. Plain errors report KindLLM, except
// context cancellation and deadline expiry which report their natural kinds.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if le, ok := AsError(err); ok {
		return le.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return KindLLM
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether a failed attempt is worth repeating: rate
// limits, unavailable providers, and generic network I/O failures. Validation,
// authorization, permission, and quota errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if le, ok := AsError(err); ok {
		switch le.Kind {
		case KindRateLimited, KindProviderUnavailable:
			return true
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// RetryAfterOf returns the provider-suggested retry delay, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	le, ok := AsError(err)
	if !ok || le.RetryAfter <= 0 {
		return 0, false
	}
	return le.RetryAfter, true
}
