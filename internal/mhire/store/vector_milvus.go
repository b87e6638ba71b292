package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/mycvconnect/mhire/pkg/chunker"
	"github.com/mycvconnect/mhire/pkg/component/milvus"
)

// MilvusClient is the part of the Milvus component the store uses.
type MilvusClient interface {
	Collection() string
	EnsureCollection(ctx context.Context, name string, dim int, recreate bool) error
	Insert(ctx context.Context, name string, rows []milvus.Row) error
	Search(ctx context.Context, name string, vector []float32, topK int) ([]milvus.Hit, error)
	Count(ctx context.Context, name string) (int64, error)
	AliasTarget(ctx context.Context, alias string) (string, error)
	SwitchAlias(ctx context.Context, alias, collection string) error
	DropCollection(ctx context.Context, name string) error
}

// MilvusVectorStore keeps chunk vectors and text in Milvus. The configured
// collection name is an alias; every ingest run writes a fresh collection
// behind it.
type MilvusVectorStore struct {
	client     MilvusClient
	collection string
	newName    func() string
}

// NewMilvusVectorStore binds the store to the configured alias.
func NewMilvusVectorStore(client MilvusClient) *MilvusVectorStore {
	alias := client.Collection()
	return &MilvusVectorStore{
		client:     client,
		collection: alias,
		newName: func() string {
			return alias + "_" + strings.ToLower(ulid.Make().String())
		},
	}
}

// Name returns the backend name.
func (s *MilvusVectorStore) Name() string { return "milvus" }

// Search runs an ANN query. Milvus does not order equal scores, so hits
// are re-sorted by score, then source path and sequence, which is the
// order ingestion inserts them in.
func (s *MilvusVectorStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	found, err := s.client.Search(ctx, s.collection, vector, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(found))
	for i, h := range found {
		hits[i] = Hit{Chunk: h.Chunk, Score: h.Score}
	}
	SortHits(hits)
	return hits, nil
}

// Replace writes rows, in their given order, to a staging collection and
// then points the alias at it. Until the switch succeeds searches keep
// hitting the previous collection; a failed run leaves it untouched.
func (s *MilvusVectorStore) Replace(ctx context.Context, dim int, chunks []chunker.Chunk, vectors [][]float32) error {
	staging := s.newName()

	if err := s.client.EnsureCollection(ctx, staging, dim, false); err != nil {
		s.discard(ctx, staging)
		return err
	}
	rows := make([]milvus.Row, len(chunks))
	for i := range chunks {
		rows[i] = milvus.Row{Chunk: chunks[i], Vector: vectors[i]}
	}
	if err := s.client.Insert(ctx, staging, rows); err != nil {
		s.discard(ctx, staging)
		return fmt.Errorf("write staging collection %s: %w", staging, err)
	}

	previous, err := s.client.AliasTarget(ctx, s.collection)
	if err != nil {
		s.discard(ctx, staging)
		return err
	}
	if err := s.client.SwitchAlias(ctx, s.collection, staging); err != nil {
		s.discard(ctx, staging)
		return err
	}
	logger.Infow("milvus alias switched",
		"alias", s.collection,
		"collection", staging,
		"previous", previous,
		"rows", len(rows),
	)

	if previous != "" && previous != staging {
		if err := s.client.DropCollection(context.WithoutCancel(ctx), previous); err != nil {
			logger.Warnw("failed to drop previous collection", "collection", previous, "error", err.Error())
		}
	}
	return nil
}

// discard 尽力删除未启用的临时集合
func (s *MilvusVectorStore) discard(ctx context.Context, name string) {
	if err := s.client.DropCollection(context.WithoutCancel(ctx), name); err != nil {
		logger.Warnw("failed to drop staging collection", "collection", name, "error", err.Error())
	}
}

// Count returns the number of stored chunks.
func (s *MilvusVectorStore) Count(ctx context.Context) (int64, error) {
	return s.client.Count(ctx, s.collection)
}

// SortHits orders hits by score descending, then by source path and
// chunk sequence.
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if c := strings.Compare(a.Chunk.SourcePath, b.Chunk.SourcePath); c != 0 {
			return c
		}
		return a.Chunk.Seq - b.Chunk.Seq
	})
}
