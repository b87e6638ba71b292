package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/utils/json"
)

// KV is the byte store behind the embedding cache. A miss is reported as
// (nil, false, nil).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀，应包含模型名，避免不同模型的向量混用。
	KeyPrefix string
}

// CachedEmbeddingProvider 提供 Embedding 缓存功能的包装器。
// 缓存读写失败只记录日志，不影响结果。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	kv       KV
	config   EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, kv KV, config EmbeddingCacheConfig) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{
		provider: provider,
		kv:       kv,
		config:   config,
	}
}

func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// Embed 批量生成 Embedding，仅对未命中的文本调用底层 provider。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		data, ok, err := c.kv.Get(ctx, c.cacheKey(text))
		if err != nil {
			logger.Warnw("embedding cache get failed, falling back to provider", "error", err.Error())
		}
		if ok {
			var v []float32
			if err := json.Unmarshal(data, &v); err == nil {
				embeddings[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	fresh, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for i, idx := range missIdx {
		if i >= len(fresh) {
			break
		}
		embeddings[idx] = fresh[i]
		data, err := json.Marshal(fresh[i])
		if err != nil {
			continue
		}
		if err := c.kv.Set(ctx, c.cacheKey(missTexts[i]), data, c.config.TTL); err != nil {
			logger.Warnw("failed to cache embedding", "error", err.Error())
		}
	}
	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}
