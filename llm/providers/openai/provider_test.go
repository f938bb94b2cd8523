package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "gpt-4o",
	}, zap.NewNop())
}

func TestCompletionSuccess(t *testing.T) {
	t.Parallel()

	var gotBody wireRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(wireResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o",
			Choices: []wireChoice{{
				Index:        0,
				FinishReason: "stop",
				Message:      wireMessage{Role: "assistant", Content: "hello there"},
			}},
			Usage:   &wireUsage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
			Created: 1700000000,
		})
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", gotBody.Model) // default model applied
	assert.Equal(t, "hello there", resp.Text())
	assert.Equal(t, 8, resp.Usage.TotalTokens)
	assert.Equal(t, "openai", resp.Provider)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestCompletionToolCalls(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Tools, 1)
		assert.Equal(t, "format_input", body.Tools[0].Function.Name)

		_ = json.NewEncoder(w).Encode(wireResponse{
			Choices: []wireChoice{{
				FinishReason: "tool_calls",
				Message: wireMessage{
					Role: "assistant",
					ToolCalls: []wireToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: wireFunction{
							Name:      "format_input",
							Arguments: json.RawMessage(`{"problem":"x+1=2"}`),
						},
					}},
				},
			}},
		})
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("solve")},
		Tools: []types.ToolSchema{{
			Name:       "format_input",
			Parameters: types.ObjectSchema(map[string]string{"problem": "the problem"}),
		}},
		ToolChoice: "format_input",
	})
	require.NoError(t, err)

	tc, ok := resp.FirstToolCall()
	require.True(t, ok)
	assert.Equal(t, "format_input", tc.Name)
	assert.JSONEq(t, `{"problem":"x+1=2"}`, string(tc.Arguments))
}

func TestCompletionErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    int
		body      string
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, types.ErrAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, types.ErrRateLimited, true},
		{"quota", http.StatusBadRequest, `{"error":{"message":"insufficient quota"}}`, types.ErrQuotaExceeded, false},
		{"context too long", http.StatusBadRequest, `{"error":{"message":"maximum context length exceeded"}}`, types.ErrContextTooLong, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"invalid role"}}`, types.ErrInvalidRequest, false},
		{"model not found", http.StatusNotFound, `{"error":{"message":"no such model"}}`, types.ErrModelNotFound, false},
		{"server error", http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`, types.ErrUpstreamError, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Messages: []types.Message{types.NewUserMessage("hi")},
			})
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tc.retryable, types.IsRetryable(err))
		})
	}
}

func TestStreamDecodesSSE(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"The ", "answer ", "is 42."}
		for i, c := range chunks {
			finish := ""
			if i == len(chunks)-1 {
				finish = "stop"
			}
			payload, _ := json.Marshal(wireResponse{
				ID:    "chatcmpl-stream",
				Model: "gpt-4o",
				Choices: []wireChoice{{
					Delta:        &wireMessage{Content: c},
					FinishReason: finish,
				}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("question")},
	})
	require.NoError(t, err)

	var got string
	var finish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		got += chunk.Delta.Content
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, "The answer is 42.", got)
	assert.Equal(t, "stop", finish)
}

func TestStreamErrorBeforeBody(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	})

	_, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	})

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
