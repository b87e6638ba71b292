// Package hashing provides a local embedding provider based on feature
// hashing of word tokens. It needs no network and no corpus preparation,
// which makes it suitable for development, tests and offline ingestion
// dry runs. Retrieval quality is lexical only.
package hashing

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/mycvconnect/mhire/pkg/llm"
)

// ProviderName is the registry name of the hashing provider.
const ProviderName = "hashing"

// DefaultDimensions is used when no dimension is configured.
const DefaultDimensions = 256

// hashKey is fixed so vectors are stable across processes and releases.
var hashKey = []byte("mhire/hashing/embedder/key/v1/00")

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "it", "this", "that", "from", "so",
		"what", "how", "do", "does", "i", "you", "my", "your", "me", "can", "will",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(config map[string]any) (llm.EmbeddingProvider, error) {
		dim := DefaultDimensions
		if v, ok := config["dimensions"].(int); ok && v > 0 {
			dim = v
		}
		return New(dim)
	})
}

// Embedder maps each token to one of Dim buckets with a signed hash.
type Embedder struct {
	dim int
}

// New creates an Embedder producing vectors of dim components.
func New(dim int) (*Embedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hashing: dimensions must be positive, got %d", dim)
	}
	return &Embedder{dim: dim}, nil
}

// Name returns the provider name.
func (e *Embedder) Name() string { return ProviderName }

// Dim returns the vector dimension.
func (e *Embedder) Dim() int { return e.dim }

// Embed returns one L2-normalised vector per text. Texts without any
// token map to the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	acc := make([]float64, e.dim)
	counts := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		counts[tok]++
	}

	for tok, n := range counts {
		h := highwayhash.Sum64([]byte(tok), hashKey)
		bucket := int(h % uint64(e.dim))
		sign := 1.0
		if h&(1<<63) != 0 {
			sign = -1.0
		}
		// sublinear tf
		acc[bucket] += sign * (1 + math.Log(float64(n)))
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}
