// Package cache provides a Redis-backed response cache for chat completions.
// Identical requests issued concurrently are collapsed into a single upstream
// call via singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/netmind-ai/autocompany/llm"
)

// ErrCacheMiss is returned by Get when the key is not present.
var ErrCacheMiss = errors.New("cache miss")

// Config holds Redis connection settings for the response cache.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	DefaultTTL   time.Duration `yaml:"default_ttl" json:"default_ttl"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DefaultConfig returns settings suitable for a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DefaultTTL:   5 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// ResponseCache stores chat responses keyed by a hash of the request.
type ResponseCache struct {
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config, logger *zap.Logger) (*ResponseCache, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("response cache initialized", zap.String("addr", cfg.Addr))
	return &ResponseCache{
		redis:  client,
		ttl:    cfg.DefaultTTL,
		logger: logger.With(zap.String("component", "llm_cache")),
	}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests with miniredis.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{
		redis:  client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "llm_cache")),
	}
}

// Key derives a stable cache key from the deterministic parts of a request.
// TraceID and Metadata are excluded so logically identical calls share a key.
func Key(req *llm.ChatRequest) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(struct {
		Model       string             `json:"model"`
		Messages    []json.RawMessage  `json:"messages"`
		MaxTokens   int                `json:"max_tokens"`
		Temperature float32            `json:"temperature"`
		TopP        float32            `json:"top_p"`
		Stop        []string           `json:"stop"`
		ToolChoice  string             `json:"tool_choice"`
		Tools       []json.RawMessage  `json:"tools"`
	}{
		Model:       req.Model,
		Messages:    marshalEach(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		ToolChoice:  req.ToolChoice,
		Tools:       marshalEach(req.Tools),
	})
	return "llm:resp:" + hex.EncodeToString(h.Sum(nil))
}

func marshalEach[T any](items []T) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		raw, _ := json.Marshal(it)
		out = append(out, raw)
	}
	return out
}

// Get loads a cached response, returning ErrCacheMiss when absent.
func (c *ResponseCache) Get(ctx context.Context, key string) (*llm.ChatResponse, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	var resp llm.ChatResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}
	return &resp, nil
}

// Set stores a response under the given key with the default TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, resp *llm.ChatResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := c.redis.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// GetOrFill returns the cached response for req, or calls fill exactly once
// per key across concurrent callers and caches its result. The boolean
// reports whether the response came from the cache.
func (c *ResponseCache) GetOrFill(ctx context.Context, req *llm.ChatRequest, fill func() (*llm.ChatResponse, error)) (*llm.ChatResponse, bool, error) {
	key := Key(req)

	if resp, err := c.Get(ctx, key); err == nil {
		return resp, true, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache lookup failed, falling through", zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := fill()
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, resp); err != nil {
			c.logger.Warn("cache store failed", zap.Error(err))
		}
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*llm.ChatResponse), false, nil
}

// Close releases the Redis connection.
func (c *ResponseCache) Close() error {
	return c.redis.Close()
}
