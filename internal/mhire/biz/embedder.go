package biz

import (
	"context"
	"fmt"
	"slices"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/llm"
	"github.com/mycvconnect/mhire/pkg/resilience"
)

const (
	// DefaultEmbedBatchSize is the number of texts per embedding request.
	DefaultEmbedBatchSize = 64

	upstreamEmbedding = "embedding"
)

// BatchEmbedder splits texts into fixed-size batches and embeds them
// through the shared retry policy.
type BatchEmbedder struct {
	provider  llm.EmbeddingProvider
	policy    *resilience.Policy
	batchSize int
}

// NewBatchEmbedder creates a BatchEmbedder. batchSize <= 0 uses the default.
func NewBatchEmbedder(provider llm.EmbeddingProvider, policy *resilience.Policy, batchSize int) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if policy == nil {
		policy = resilience.NoRetry()
	}
	return &BatchEmbedder{provider: provider, policy: policy, batchSize: batchSize}
}

// BatchSize returns the configured batch size.
func (e *BatchEmbedder) BatchSize() int { return e.batchSize }

// Batches returns the number of batches n inputs are split into.
func (e *BatchEmbedder) Batches(n int) int {
	return (n + e.batchSize - 1) / e.batchSize
}

// Name returns the provider name.
func (e *BatchEmbedder) Name() string { return e.provider.Name() }

// Embed returns one vector per text in input order. When some batches
// fail it returns the partial result, nil at the failed inputs, and an
// *EmbeddingServiceError naming them.
func (e *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatches(ctx, texts, nil)
}

// EmbedBatches embeds only the listed batches of texts, all of them when
// only is nil. Slots of batches not listed stay nil.
func (e *BatchEmbedder) EmbedBatches(ctx context.Context, texts []string, only []int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	total := e.Batches(len(texts))
	if total == 0 {
		return out, nil
	}

	batches := only
	if batches == nil {
		batches = make([]int, total)
		for i := range batches {
			batches[i] = i
		}
	} else {
		batches = slices.Clone(only)
		slices.Sort(batches)
		batches = slices.Compact(batches)
	}

	var failed []int
	var cause error
	for pos, b := range batches {
		if b < 0 || b >= total {
			return nil, fmt.Errorf("embedding batch %d out of range [0, %d)", b, total)
		}
		if err := ctx.Err(); err != nil {
			failed = append(failed, batches[pos:]...)
			cause = err
			break
		}

		start := b * e.batchSize
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			logger.Warnw("embedding batch failed",
				"upstream", upstreamEmbedding,
				"provider", e.provider.Name(),
				"batch", b,
				"batches", total,
				"error", err.Error(),
			)
			failed = append(failed, b)
			cause = err
			continue
		}
		copy(out[start:end], vecs)
	}

	if len(failed) > 0 {
		return out, &EmbeddingServiceError{
			FailedBatches: failed,
			BatchSize:     e.batchSize,
			Batches:       total,
			Cause:         cause,
		}
	}
	return out, nil
}

func (e *BatchEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	err := e.policy.Do(ctx, upstreamEmbedding, func(ctx context.Context) error {
		v, err := e.provider.Embed(ctx, batch)
		if err != nil {
			return err
		}
		if len(v) != len(batch) {
			return fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(v), len(batch))
		}
		vecs = v
		return nil
	})
	return vecs, err
}
