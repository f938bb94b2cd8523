package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/types"
)

func newTestCache(t *testing.T) *ResponseCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, time.Minute, zap.NewNop())
}

func testRequest(content string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: types.RoleUser, Content: content}},
	}
}

func TestKeyIgnoresTraceID(t *testing.T) {
	t.Parallel()

	a := testRequest("same input")
	b := testRequest("same input")
	b.TraceID = "different-trace"

	assert.Equal(t, Key(a), Key(b))
	assert.NotEqual(t, Key(a), Key(testRequest("other input")))
}

func TestGetMissAndSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := Key(testRequest("hello"))

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	resp := &llm.ChatResponse{
		Model:   "gpt-4o",
		Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage("hi")}},
	}
	require.NoError(t, c.Set(ctx, key, resp))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Text())
}

func TestGetOrFillCachesResult(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	req := testRequest("question")

	calls := 0
	fill := func() (*llm.ChatResponse, error) {
		calls++
		return &llm.ChatResponse{
			Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage("answer")}},
		}, nil
	}

	resp, cached, err := c.GetOrFill(ctx, req, fill)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "answer", resp.Text())
	assert.Equal(t, 1, calls)

	resp, cached, err = c.GetOrFill(ctx, req, fill)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "answer", resp.Text())
	assert.Equal(t, 1, calls)
}

func TestGetOrFillPropagatesError(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	wantErr := errors.New("upstream down")
	_, _, err := c.GetOrFill(ctx, testRequest("q"), func() (*llm.ChatResponse, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
