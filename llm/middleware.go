package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/netmind-ai/autocompany/llm/retry"
	"github.com/netmind-ai/autocompany/llm/tokenizer"
	"github.com/netmind-ai/autocompany/types"
)

// ResponseCacher is implemented by llm/cache.ResponseCache. GetOrFill must
// call fill at most once per distinct request across concurrent callers.
type ResponseCacher interface {
	GetOrFill(ctx context.Context, req *ChatRequest, fill func() (*ChatResponse, error)) (*ChatResponse, bool, error)
}

// MetricsRecorder is implemented by internal/metrics.Collector.
type MetricsRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// WithRetry wraps a provider so Completion and the initial Stream call are
// retried with exponential backoff. Only errors marked retryable by
// types.IsRetryable are attempted again.
func WithRetry(p Provider, policy *retry.Policy, logger *zap.Logger) Provider {
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if policy.RetryIf == nil {
		policy.RetryIf = types.IsRetryable
	}
	return &retryProvider{
		Provider: p,
		retryer:  retry.NewBackoffRetryer(policy, logger),
	}
}

type retryProvider struct {
	Provider
	retryer retry.Retryer
}

func (p *retryProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	v, err := p.retryer.DoWithResult(ctx, func() (any, error) {
		return p.Provider.Completion(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChatResponse), nil
}

func (p *retryProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	v, err := p.retryer.DoWithResult(ctx, func() (any, error) {
		return p.Provider.Stream(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(<-chan StreamChunk), nil
}

// WithRateLimit wraps a provider with a token-bucket limiter shared between
// Completion and Stream. Blocked callers honor context cancellation.
func WithRateLimit(p Provider, limiter *rate.Limiter) Provider {
	return &rateLimitedProvider{Provider: p, limiter: limiter}
}

type rateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

func (p *rateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrRateLimited, "rate limit wait canceled").WithCause(err)
	}
	return p.Provider.Completion(ctx, req)
}

func (p *rateLimitedProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrRateLimited, "rate limit wait canceled").WithCause(err)
	}
	return p.Provider.Stream(ctx, req)
}

// WithCache wraps a provider with a response cache. Only Completion is
// cached; streaming responses always go upstream. A nil recorder disables
// hit/miss accounting.
func WithCache(p Provider, cache ResponseCacher, recorder MetricsRecorder) Provider {
	return &cachedProvider{Provider: p, cache: cache, recorder: recorder}
}

type cachedProvider struct {
	Provider
	cache    ResponseCacher
	recorder MetricsRecorder
}

func (p *cachedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, hit, err := p.cache.GetOrFill(ctx, req, func() (*ChatResponse, error) {
		return p.Provider.Completion(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if p.recorder != nil {
		if hit {
			p.recorder.RecordCacheHit("llm_response")
		} else {
			p.recorder.RecordCacheMiss("llm_response")
		}
	}
	return resp, nil
}

// WithMetrics wraps a provider so every Completion records request count,
// duration and token usage. When the upstream omits usage, counts are filled
// from the tokenizer so accounting never reports zero.
func WithMetrics(p Provider, recorder MetricsRecorder, counter tokenizer.Counter) Provider {
	if counter == nil {
		counter = tokenizer.NewEstimator()
	}
	return &measuredProvider{Provider: p, recorder: recorder, counter: counter}
}

type measuredProvider struct {
	Provider
	recorder MetricsRecorder
	counter  tokenizer.Counter
}

func (p *measuredProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := p.Provider.Completion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		p.recorder.RecordLLMRequest(p.Name(), req.Model, "error", duration, 0, 0)
		return nil, err
	}

	usage := resp.Usage
	if usage.TotalTokens == 0 {
		usage.PromptTokens = tokenizer.CountMessages(p.counter, req.Messages)
		usage.CompletionTokens = p.counter.Count(resp.Text())
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		resp.Usage = usage
	}
	p.recorder.RecordLLMRequest(p.Name(), req.Model, "success", duration, usage.PromptTokens, usage.CompletionTokens)
	return resp, nil
}
