package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/types"
)

// PromptAgent is an LLM-backed agent driven by a message template. Each
// Execute renders the template by substituting {key} placeholders with the
// matching params, then issues a completion or a streaming request.
//
// Only placeholders whose key appears in params are substituted; other
// brace sequences (JSON examples in prompts, for instance) pass through
// untouched.
type PromptAgent struct {
	info     types.AgentInfo
	template []types.Message
	provider llm.Provider

	model       string
	temperature float32
	streaming   bool
	logger      *zap.Logger

	mu          sync.Mutex
	lastRequest *llm.ChatRequest
}

// PromptOption configures a PromptAgent.
type PromptOption func(*PromptAgent)

// WithModel overrides the provider's default model.
func WithModel(model string) PromptOption {
	return func(a *PromptAgent) { a.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) PromptOption {
	return func(a *PromptAgent) { a.temperature = t }
}

// WithStreaming makes Execute return a fragment stream instead of a
// complete string.
func WithStreaming() PromptOption {
	return func(a *PromptAgent) { a.streaming = true }
}

// WithLogger sets the agent logger.
func WithLogger(logger *zap.Logger) PromptOption {
	return func(a *PromptAgent) { a.logger = logger }
}

// NewPromptAgent creates a template-driven agent.
func NewPromptAgent(info types.AgentInfo, template []types.Message, provider llm.Provider, opts ...PromptOption) *PromptAgent {
	a := &PromptAgent{
		info:     info,
		template: template,
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(
		zap.String("component", "prompt_agent"),
		zap.String("agent", info.Name),
	)
	return a
}

// Info implements Agent.
func (a *PromptAgent) Info() types.AgentInfo { return a.info }

// Execute implements Agent.
func (a *PromptAgent) Execute(ctx context.Context, params map[string]any) (*Output, error) {
	req := &llm.ChatRequest{
		Model:       a.model,
		Messages:    a.render(params),
		Temperature: a.temperature,
	}

	a.mu.Lock()
	a.lastRequest = req
	a.mu.Unlock()

	a.logger.Debug("executing",
		zap.Int("messages", len(req.Messages)),
		zap.Bool("streaming", a.streaming),
	)

	if a.streaming {
		chunks, err := a.provider.Stream(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("agent %s: stream failed: %w", a.info.Name, err)
		}
		fragments, errf := textFragments(chunks)
		return NewStreamOutputWithError(fragments, func() error {
			if err := errf(); err != nil {
				return fmt.Errorf("agent %s: stream failed: %w", a.info.Name, err)
			}
			return nil
		}), nil
	}

	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent %s: completion failed: %w", a.info.Name, err)
	}
	return NewTextOutput(resp.Text()), nil
}

// Debug returns the last rendered request, for prompt inspection.
func (a *PromptAgent) Debug() *llm.ChatRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRequest
}

// render substitutes {key} placeholders in every template message.
func (a *PromptAgent) render(params map[string]any) []types.Message {
	msgs := make([]types.Message, len(a.template))
	copy(msgs, a.template)
	if len(params) == 0 {
		return msgs
	}
	pairs := make([]string, 0, 2*len(params))
	for key, value := range params {
		pairs = append(pairs, "{"+key+"}", fmt.Sprint(value))
	}
	replacer := strings.NewReplacer(pairs...)
	for i := range msgs {
		msgs[i].Content = replacer.Replace(msgs[i].Content)
	}
	return msgs
}

// textFragments strips a provider chunk stream down to its text deltas. A
// chunk carrying Err terminates the stream; the returned func reports that
// error and must only be called after the fragment channel is closed.
func textFragments(chunks <-chan llm.StreamChunk) (<-chan string, func() error) {
	out := make(chan string)
	var streamErr error
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Err != nil {
				streamErr = chunk.Err
				return
			}
			if chunk.Delta.Content != "" {
				out <- chunk.Delta.Content
			}
		}
	}()
	return out, func() error { return streamErr }
}
