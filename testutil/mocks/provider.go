// Package mocks provides test doubles for the llm.Provider interface.
//
// MockProvider supports fixed responses, scripted response sequences,
// streaming output and error injection.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/types"
)

// MockProvider is a configurable in-memory llm.Provider.
type MockProvider struct {
	mu sync.Mutex

	response     string
	responseSeq  []string // consumed one per Completion call, then falls back to response
	streamChunks []string
	toolCalls    []types.ToolCall
	err          error

	promptTokens     int
	completionTokens int

	calls          []ProviderCall
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
	streamFunc     func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error)

	failAfter int // fail every call after the Nth
	callCount int
}

// ProviderCall records a single invocation.
type ProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// NewMockProvider creates a provider that answers "Mock response".
func NewMockProvider() *MockProvider {
	return &MockProvider{
		response:         "Mock response",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse sets a fixed response content.
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithResponseSequence scripts one response per successive Completion call.
// When the sequence runs out the fixed response is used.
func (m *MockProvider) WithResponseSequence(responses ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseSeq = append([]string{}, responses...)
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreamChunks sets the fragments emitted by Stream.
func (m *MockProvider) WithStreamChunks(chunks ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = append([]string{}, chunks...)
	return m
}

// WithToolCalls makes responses carry the given tool calls.
func (m *MockProvider) WithToolCalls(toolCalls ...types.ToolCall) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append([]types.ToolCall{}, toolCalls...)
	return m
}

// WithTokenUsage sets the usage reported on responses.
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithFailAfter makes every call after the Nth fail.
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithCompletionFunc installs a custom Completion implementation.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// WithStreamFunc installs a custom Stream implementation.
func (m *MockProvider) WithStreamFunc(fn func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamFunc = fn
	return m
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return "mock" }

// HealthCheck implements llm.Provider.
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: 10 * time.Millisecond}, nil
}

// Completion implements llm.Provider.
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	if m.failAfter > 0 && m.callCount > m.failAfter {
		err := errors.New("mock provider: configured to fail after N calls")
		m.calls = append(m.calls, ProviderCall{Request: req, Error: err})
		return nil, err
	}

	if m.err != nil {
		m.calls = append(m.calls, ProviderCall{Request: req, Error: m.err})
		return nil, m.err
	}

	if m.completionFunc != nil {
		resp, err := m.completionFunc(ctx, req)
		m.calls = append(m.calls, ProviderCall{Request: req, Response: resp, Error: err})
		return resp, err
	}

	content := m.response
	if len(m.responseSeq) > 0 {
		content = m.responseSeq[0]
		m.responseSeq = m.responseSeq[1:]
	}

	resp := &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: "mock",
		Model:    req.Model,
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: types.Message{
					Role:      types.RoleAssistant,
					Content:   content,
					ToolCalls: m.toolCalls,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
		CreatedAt: time.Now(),
	}
	if len(m.toolCalls) > 0 {
		resp.Choices[0].FinishReason = "tool_calls"
	}

	m.calls = append(m.calls, ProviderCall{Request: req, Response: resp})
	return resp, nil
}

// Stream implements llm.Provider. When no chunks are configured the fixed
// response is emitted as a single chunk.
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	if m.err != nil {
		return nil, m.err
	}
	if m.streamFunc != nil {
		return m.streamFunc(ctx, req)
	}

	chunks := m.streamChunks
	if len(chunks) == 0 {
		content := m.response
		if len(m.responseSeq) > 0 {
			content = m.responseSeq[0]
			m.responseSeq = m.responseSeq[1:]
		}
		chunks = []string{content}
	}

	ch := make(chan llm.StreamChunk, len(chunks))
	go func() {
		defer close(ch)
		for i, chunk := range chunks {
			finish := ""
			if i == len(chunks)-1 {
				finish = "stop"
			}
			select {
			case <-ctx.Done():
				return
			case ch <- llm.StreamChunk{
				ID:       "mock-chunk-id",
				Provider: "mock",
				Model:    req.Model,
				Index:    i,
				Delta: types.Message{
					Role:    types.RoleAssistant,
					Content: chunk,
				},
				FinishReason: finish,
			}:
			}
		}
	}()
	return ch, nil
}

// Calls returns a copy of all recorded invocations.
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProviderCall{}, m.calls...)
}

// CallCount returns how many times the provider was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall returns the most recent invocation, or nil.
func (m *MockProvider) LastCall() *ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears recorded calls and injected errors.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
	m.err = nil
}
