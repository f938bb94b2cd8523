// Package agent defines the Agent interface the orchestrator schedules, the
// Output type carrying complete or streamed results, the template-driven
// PromptAgent, and the Roster registry.
package agent

import (
	"context"

	"github.com/netmind-ai/autocompany/types"
)

// Agent is a unit of work the orchestrator can schedule. Implementations
// receive structured params matching their declared input schema.
type Agent interface {
	// Info returns the agent's static metadata.
	Info() types.AgentInfo

	// Execute runs the agent with structured parameters.
	Execute(ctx context.Context, params map[string]any) (*Output, error)
}

// Func adapts a plain function into an Agent.
type Func struct {
	Meta types.AgentInfo
	Fn   func(ctx context.Context, params map[string]any) (*Output, error)
}

// Info implements Agent.
func (f *Func) Info() types.AgentInfo { return f.Meta }

// Execute implements Agent.
func (f *Func) Execute(ctx context.Context, params map[string]any) (*Output, error) {
	return f.Fn(ctx, params)
}
