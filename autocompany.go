// Package autocompany provides a top-level convenience entry point for
// running an autonomous company with minimal boilerplate.
//
// Usage:
//
//	import "github.com/netmind-ai/autocompany"
//
//	c := autocompany.New(autocompany.WithOpenAI("gpt-4o"))
//	c.Register(myAgents...)
//	res, err := c.Run(ctx, "solve x^2 - 5x + 6 = 0")
//
// This is a thin wrapper around [company.New]; use the company package
// directly when you need full control over the manager, formatter or
// provider middleware.
package autocompany

import (
	"os"

	"github.com/netmind-ai/autocompany/company"
	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/llm/providers/openai"
)

// Option configures the company created by [New].
type Option func(*builder)

type builder struct {
	provider llm.Provider
	opts     []company.Option
}

// WithProvider sets a pre-built LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(b *builder) { b.provider = p }
}

// WithOpenAI creates an OpenAI provider. API key from OPENAI_API_KEY env.
func WithOpenAI(model string) Option {
	return func(b *builder) {
		b.provider = openai.New(openai.Config{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			DefaultModel: model,
		}, nil)
	}
}

// WithCompanyOptions forwards options to [company.New].
func WithCompanyOptions(opts ...company.Option) Option {
	return func(b *builder) { b.opts = append(b.opts, opts...) }
}

// New creates a [company.Company]. A provider must be specified via
// [WithOpenAI] or [WithProvider].
func New(opts ...Option) *company.Company {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	return company.New(b.provider, b.opts...)
}
