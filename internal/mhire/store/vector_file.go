package store

import (
	"context"
	"fmt"

	"github.com/mycvconnect/mhire/pkg/vectorindex"
)

// FileVectorStore serves an index file and its chunk sidecar from memory.
// It is read-only once opened.
type FileVectorStore struct {
	index   *vectorindex.Index
	sidecar *vectorindex.Sidecar
}

// OpenFileVectorStore loads both files written by the ingest command.
func OpenFileVectorStore(indexPath, sidecarPath string) (*FileVectorStore, error) {
	idx, sc, err := vectorindex.LoadWithSidecar(indexPath, sidecarPath)
	if err != nil {
		return nil, err
	}
	return &FileVectorStore{index: idx, sidecar: sc}, nil
}

// NewFileVectorStore wraps an index built in memory.
func NewFileVectorStore(idx *vectorindex.Index, sc *vectorindex.Sidecar) *FileVectorStore {
	return &FileVectorStore{index: idx, sidecar: sc}
}

// Name returns the backend name.
func (s *FileVectorStore) Name() string { return "file" }

// Len returns the number of indexed chunks.
func (s *FileVectorStore) Len() int { return s.index.Len() }

// Count returns the number of indexed chunks.
func (s *FileVectorStore) Count(_ context.Context) (int64, error) { return int64(s.index.Len()), nil }

// Dim returns the vector dimension.
func (s *FileVectorStore) Dim() int { return s.index.Dim() }

// Sidecar returns the ingestion metadata.
func (s *FileVectorStore) Sidecar() *vectorindex.Sidecar { return s.sidecar }

// Search queries the index and joins the results with their chunk text.
func (s *FileVectorStore) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	results, err := s.index.Query(vector, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		ch, ok := s.sidecar.Lookup(r.ID)
		if !ok {
			return nil, fmt.Errorf("chunk %s missing from sidecar", r.ID)
		}
		hits = append(hits, Hit{Chunk: ch, Score: r.Score})
	}
	return hits, nil
}
