package mhire

import (
	"fmt"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/component/redis"
	"github.com/mycvconnect/mhire/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/mycvconnect/mhire/pkg/llm/hashing"
	_ "github.com/mycvconnect/mhire/pkg/llm/openai"
	llmopts "github.com/mycvconnect/mhire/pkg/options/llm"
	ragopts "github.com/mycvconnect/mhire/pkg/options/rag"
	retryopts "github.com/mycvconnect/mhire/pkg/options/retry"
	"github.com/mycvconnect/mhire/pkg/resilience"
)

// NewPolicy builds the retry policy shared by every upstream client.
func NewPolicy(opts *retryopts.Options) *resilience.Policy {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxAttempts
	retry.InitialDelay = opts.InitialDelay
	retry.MaxDelay = opts.MaxDelay
	retry.Multiplier = opts.Multiplier
	retry.Jitter = opts.Jitter

	breaker := resilience.DefaultCircuitBreakerConfig()
	breaker.MaxFailures = opts.BreakerThreshold
	breaker.Timeout = opts.BreakerTimeout
	return resilience.NewPolicy(retry, breaker)
}

// NewEmbedder creates the embedding provider named in opts and wraps it
// in a BatchEmbedder. With a Redis client and a positive cache TTL, query
// embeddings are cached per model.
func NewEmbedder(opts *llmopts.ProviderOptions, rag *ragopts.Options, rdb *redis.Client, policy *resilience.Policy) (*biz.BatchEmbedder, error) {
	provider, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", opts.Provider,
		"model", opts.Model,
	)

	if rdb != nil && rag.CacheTTL > 0 {
		provider = llm.NewCachedEmbeddingProvider(provider, store.NewRedisKV(rdb), llm.EmbeddingCacheConfig{
			TTL:       rag.CacheTTL,
			KeyPrefix: rdb.Key("embedding", opts.Provider, opts.Model) + ":",
		})
		logger.Infow("Embedding cache enabled", "ttl", rag.CacheTTL)
	}
	return biz.NewBatchEmbedder(provider, policy, rag.EmbedBatchSize), nil
}

// NewChat creates the chat provider named in opts.
func NewChat(opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	provider, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", opts.Provider,
		"model", opts.Model,
	)
	return provider, nil
}
