// Package llm defines the provider-agnostic data contracts for conversational
// LLM backends: messages, requests, responses, streaming events, tool
// definitions, error taxonomy, and the Provider interface every adapter
// implements.
//
// The package is deliberately free of transport and vendor concerns. Adapters
// live under pkg/llm/providers, the middleware pipeline under pkg/llm/pipeline,
// and the client surface under pkg/llm/client.
//
// Values in this package are treated as logically immutable once they enter
// the pipeline: components that need to modify a Request or Response work on a
// copy (see Request.Clone and Response.Clone) rather than mutating in place.
package llm
