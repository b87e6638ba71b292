package ingest

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/vectorindex"
)

// FileWriter writes the index file and its chunk sidecar.
type FileWriter struct {
	IndexPath   string
	SidecarPath string
}

// Name returns the backend name.
func (w *FileWriter) Name() string { return "file" }

// Write builds the in-memory index and persists both files under one
// build id. A crash between the two writes leaves a pair with different
// build ids, which the server refuses to load.
func (w *FileWriter) Write(_ context.Context, b *Build) error {
	buildID := ulid.Make().String()
	idx := vectorindex.New(b.Dimension)
	idx.SetBuildID(buildID)
	sc := vectorindex.NewSidecar(b.ChunkSize, b.ChunkOverlap, b.Model, b.Dimension)
	sc.BuildID = buildID
	for i, ch := range b.Chunks {
		if err := idx.Insert(ch.ID, b.Vectors[i]); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
		sc.Add(ch)
	}

	if err := vectorindex.WriteSidecar(w.SidecarPath, sc); err != nil {
		return err
	}
	if err := idx.Persist(w.IndexPath); err != nil {
		return err
	}
	logger.Infow("index files written",
		"index_path", w.IndexPath,
		"sidecar_path", w.SidecarPath,
		"chunks", idx.Len(),
		"dimension", idx.Dim(),
		"build_id", buildID,
	)
	return nil
}

// MilvusWriter swaps a freshly built collection in behind the Milvus alias.
type MilvusWriter struct {
	Store *store.MilvusVectorStore
}

// Name returns the backend name.
func (w *MilvusWriter) Name() string { return "milvus" }

// Write inserts the chunks in order into a new collection and switches the alias to it.
func (w *MilvusWriter) Write(ctx context.Context, b *Build) error {
	if err := w.Store.Replace(ctx, b.Dimension, b.Chunks, b.Vectors); err != nil {
		return err
	}
	n, err := w.Store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count milvus rows: %w", err)
	}
	logger.Infow("milvus collection written", "chunks", len(b.Chunks), "rows", n)
	return nil
}
