// Package transport defines the HTTP port provider adapters speak through.
// Adapters build wire-level requests and parse wire-level responses; the
// transport only moves bytes. Keeping the port this narrow lets tests swap in
// canned exchanges without a network.
package transport

import "context"

// Request is one outbound HTTP exchange.
type Request struct {
	// Method is the HTTP method. Defaults to POST when empty.
	Method string

	// URL is the absolute endpoint URL.
	URL string

	// Headers are sent verbatim. The transport adds nothing beyond what the
	// underlying HTTP client requires.
	Headers map[string]string

	// Body is the serialized request payload.
	Body []byte
}

// Response is the complete result of one exchange. Streaming responses are
// returned whole; the body then contains the provider's framed event text
// (SSE data lines or NDJSON) for the adapter to parse.
type Response struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Headers holds the response headers, single-valued.
	Headers map[string]string

	// Body is the full response payload.
	Body []byte
}

// Transport executes one HTTP exchange. An error is returned only for
// transport-level failures (connection, deadline); non-2xx statuses come back
// as a Response for the adapter to translate.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}
