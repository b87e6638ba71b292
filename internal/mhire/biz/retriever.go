package biz

import (
	"context"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 2

// Retriever embeds a query and looks up the closest chunks.
type Retriever struct {
	embedder *BatchEmbedder
	store    store.VectorStore
	topK     int
}

// NewRetriever creates a Retriever. topK <= 0 uses DefaultTopK.
func NewRetriever(embedder *BatchEmbedder, vs store.VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: vs, topK: topK}
}

// TopK returns the default result size.
func (r *Retriever) TopK() int { return r.topK }

// Retrieve returns up to k chunks by non-increasing score; k <= 0 uses
// the configured top-k.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]store.Hit, error) {
	if k <= 0 {
		k = r.topK
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	hits, err := r.store.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, apierrors.ErrIndexUnavailable.WithCause(err)
	}
	return hits, nil
}

// Sources converts hits to their API form.
func Sources(hits []store.Hit) []model.Source {
	out := make([]model.Source, len(hits))
	for i, h := range hits {
		out[i] = model.Source{
			ChunkID:      h.Chunk.ID,
			DocumentID:   h.Chunk.DocumentID,
			DocumentName: h.Chunk.DocumentName,
			Source:       h.Chunk.SourcePath,
			Seq:          h.Chunk.Seq,
			Score:        h.Score,
		}
	}
	return out
}
