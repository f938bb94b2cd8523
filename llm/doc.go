// Package llm defines the provider abstraction used by every agent in the
// framework: chat completion requests and responses, streaming chunks, and
// the Provider interface concrete adapters implement. Cross-cutting concerns
// (retry, rate limiting, caching, metrics) wrap a Provider through the
// middleware constructors in middleware.go.
package llm
