package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/chunker"
	"github.com/mycvconnect/mhire/pkg/vectorindex"
)

func TestMemoryVerificationStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVerificationStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertRecord(ctx, &model.VerificationRecord{ID: "1", UserID: "u1", CreatedAt: base}))
	require.NoError(t, s.InsertRecord(ctx, &model.VerificationRecord{ID: "2", UserID: "u2", CreatedAt: base}))
	require.NoError(t, s.InsertRecord(ctx, &model.VerificationRecord{ID: "3", UserID: "u1", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.InsertRecord(ctx, &model.VerificationRecord{ID: "4", UserID: "u1", CreatedAt: base.Add(time.Second)}))

	recs, err := s.ListRecords(ctx, "u1", 0)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"4", "3", "1"}, ids)

	recs, err = s.ListRecords(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = s.ListRecords(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryVerificationStore_Reference(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVerificationStore()

	_, err := s.GetReference(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveReference(ctx, &model.FaceReference{UserID: "u1", FaceToken: "old"}))
	require.NoError(t, s.SaveReference(ctx, &model.FaceReference{UserID: "u1", FaceToken: "new", Image: []byte{1}}))

	ref, err := s.GetReference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", ref.FaceToken)
	assert.Equal(t, []byte{1}, ref.Image)
}

func buildFileStore(t *testing.T) *FileVectorStore {
	t.Helper()
	idx := vectorindex.New(2)
	sc := vectorindex.NewSidecar(10, 2, "test", 2)
	chunks := []chunker.Chunk{
		{ID: "d-0", DocumentID: "d", Seq: 0, Text: "east"},
		{ID: "d-1", DocumentID: "d", Seq: 1, Text: "north"},
		{ID: "d-2", DocumentID: "d", Seq: 2, Text: "also east"},
	}
	vecs := [][]float32{{1, 0}, {0, 1}, {2, 0}}
	for i, ch := range chunks {
		require.NoError(t, idx.Insert(ch.ID, vecs[i]))
		sc.Add(ch)
	}
	return NewFileVectorStore(idx, sc)
}

func TestFileVectorStore(t *testing.T) {
	s := buildFileStore(t)
	assert.Equal(t, "file", s.Name())
	assert.Equal(t, 3, s.Len())

	hits, err := s.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// 同分按插入顺序
	assert.Equal(t, "d-0", hits[0].Chunk.ID)
	assert.Equal(t, "d-2", hits[1].Chunk.ID)
	assert.Equal(t, "also east", hits[1].Chunk.Text)
}

func TestOpenFileVectorStore(t *testing.T) {
	s := buildFileStore(t)
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "x.idx")
	sidecarPath := filepath.Join(dir, "x.json")
	require.NoError(t, s.index.Persist(indexPath))
	require.NoError(t, vectorindex.WriteSidecar(sidecarPath, s.sidecar))

	loaded, err := OpenFileVectorStore(indexPath, sidecarPath)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Dim())

	want, _ := s.Search(context.Background(), []float32{0.3, 0.7}, 3)
	got, err := loaded.Search(context.Background(), []float32{0.3, 0.7}, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = OpenFileVectorStore(filepath.Join(dir, "missing.idx"), sidecarPath)
	assert.Error(t, err)
}

func TestSortHits(t *testing.T) {
	hits := []Hit{
		{Chunk: chunker.Chunk{ID: "b-1", SourcePath: "b.md", Seq: 1}, Score: 0.5},
		{Chunk: chunker.Chunk{ID: "a-1", SourcePath: "a.md", Seq: 1}, Score: 0.5},
		{Chunk: chunker.Chunk{ID: "c-0", SourcePath: "c.md", Seq: 0}, Score: 0.9},
		{Chunk: chunker.Chunk{ID: "a-0", SourcePath: "a.md", Seq: 0}, Score: 0.5},
	}
	SortHits(hits)

	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Chunk.ID)
	}
	assert.Equal(t, []string{"c-0", "a-0", "a-1", "b-1"}, ids)
}

func TestMemoryFaceSetStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFaceSetStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.AvailableFaceSet(ctx, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_b", FaceCount: 3, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_a", FaceCount: 10, CreatedAt: base}))
	require.NoError(t, s.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_c", FaceCount: 0, CreatedAt: base}))

	sets, err := s.ListFaceSets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "faceset_a", sets[0].OuterID)
	assert.Equal(t, "faceset_b", sets[1].OuterID)

	// faceset_a 已满
	fs, err := s.AvailableFaceSet(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "faceset_b", fs.OuterID)

	fs.FaceCount = 99
	again, err := s.AvailableFaceSet(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, again.FaceCount)

	require.NoError(t, s.AddFace(ctx, &model.RegisteredFace{FaceToken: "t1", FaceSetID: "faceset_b"}))
	require.NoError(t, s.AddFace(ctx, &model.RegisteredFace{FaceToken: "t1", FaceSetID: "faceset_b"}))
	assert.Equal(t, 1, s.Faces())
}
