package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/chunker"
	"github.com/mycvconnect/mhire/pkg/llm/hashing"
	"github.com/mycvconnect/mhire/pkg/vectorindex"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func hashingEmbedder(t *testing.T) *biz.BatchEmbedder {
	t.Helper()
	emb, err := hashing.New(1024)
	require.NoError(t, err)
	return biz.NewBatchEmbedder(emb, nil, 2)
}

func fileWriter(dir string) *FileWriter {
	return &FileWriter{
		IndexPath:   filepath.Join(dir, "out", "kb.index"),
		SidecarPath: filepath.Join(dir, "out", "kb.chunks.json"),
	}
}

// 2500 个字符：apricot [0,1000)，bananas [1000,1600)，currant 与 kiwi 在其后
func fruitDocument() string {
	return strings.Repeat("apricot ", 125) + strings.Repeat("bananas ", 75) + strings.Repeat("currant ", 112) + "kiwi"
}

func TestPipeline_EndToEnd(t *testing.T) {
	src := t.TempDir()
	text := fruitDocument()
	require.Equal(t, 2500, utf8.RuneCountInString(text))
	writeFile(t, src, "fruit.txt", text)

	out := t.TempDir()
	w := fileWriter(out)
	embedder := hashingEmbedder(t)
	p, err := NewPipeline(Config{SourceDir: src, ChunkSize: 1000, ChunkOverlap: 200, Workers: 2}, embedder, w)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 1024, report.Dimension)
	assert.Empty(t, report.FailedDocuments)

	vs, err := store.OpenFileVectorStore(w.IndexPath, w.SidecarPath)
	require.NoError(t, err)
	require.Equal(t, 3, vs.Len())

	var bounds [][2]int
	for seq := 0; seq < 3; seq++ {
		var found bool
		for _, ch := range vs.Sidecar().Chunks {
			if ch.Seq == seq {
				bounds = append(bounds, [2]int{ch.Start, ch.End})
				found = true
			}
		}
		require.True(t, found, "chunk %d", seq)
	}
	assert.Equal(t, [][2]int{{0, 1000}, {800, 1800}, {1600, 2500}}, bounds)

	retriever := biz.NewRetriever(embedder, vs, 2)
	hits, err := retriever.Retrieve(context.Background(), "bananas bananas bananas", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 1, hits[0].Chunk.Seq)
	assert.Equal(t, "fruit.txt", hits[0].Chunk.DocumentName)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestPipeline_InvalidConfiguration(t *testing.T) {
	_, err := NewPipeline(Config{SourceDir: t.TempDir(), ChunkSize: 100, ChunkOverlap: 100}, hashingEmbedder(t), fileWriter(t.TempDir()))
	assert.ErrorIs(t, err, chunker.ErrInvalidConfiguration)

	_, err = NewPipeline(Config{ChunkSize: 100, ChunkOverlap: 10}, hashingEmbedder(t), fileWriter(t.TempDir()))
	assert.ErrorIs(t, err, chunker.ErrInvalidConfiguration)
}

func TestPipeline_NothingToIndex(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "image.png", "not a document")
	writeFile(t, src, "empty.md", "   \n")

	out := t.TempDir()
	w := fileWriter(out)
	p, err := NewPipeline(Config{SourceDir: src, ChunkSize: 100, ChunkOverlap: 10}, hashingEmbedder(t), w)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNothingIndexed)
	require.NotNil(t, report)
	require.Len(t, report.FailedDocuments, 1)
	assert.Contains(t, report.FailedDocuments[0].Path, "empty.md")

	_, statErr := os.Stat(w.IndexPath)
	assert.True(t, os.IsNotExist(statErr))
}

// poisonEmbedder fails every batch holding a text with the marker.
type poisonEmbedder struct {
	marker string
	calls  int
}

func (p *poisonEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, p.marker) {
			return nil, errors.New("provider rejected batch")
		}
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (p *poisonEmbedder) Name() string { return "poison" }

func TestPipeline_PartialFailure(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.md", strings.Repeat("good words here ", 10))
	writeFile(t, src, "b.md", strings.Repeat("POISON text ", 10))
	writeFile(t, src, "c/d.txt", strings.Repeat("more good words ", 10))

	pe := &poisonEmbedder{marker: "POISON"}
	out := t.TempDir()
	w := fileWriter(out)
	p, err := NewPipeline(Config{SourceDir: src, ChunkSize: 200, ChunkOverlap: 20}, biz.NewBatchEmbedder(pe, nil, 1), w)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 2, report.Indexed)
	assert.NotEmpty(t, report.FailedBatches)
	require.Len(t, report.FailedDocuments, 1)
	assert.Equal(t, filepath.Join(src, "b.md"), report.FailedDocuments[0].Path)

	vs, err := store.OpenFileVectorStore(w.IndexPath, w.SidecarPath)
	require.NoError(t, err)
	assert.Equal(t, report.Chunks, vs.Len())
	for _, ch := range vs.Sidecar().Chunks {
		assert.NotEqual(t, "b.md", ch.DocumentName)
	}
}

func TestFileWriter_StaleSidecarRejected(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "fruit.txt", fruitDocument())
	out := t.TempDir()
	w := fileWriter(out)

	run := func() {
		p, err := NewPipeline(Config{SourceDir: src, ChunkSize: 1000, ChunkOverlap: 200, Workers: 2}, hashingEmbedder(t), w)
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		require.NoError(t, err)
	}

	run()
	first, err := os.ReadFile(w.SidecarPath)
	require.NoError(t, err)
	x, sc, err := vectorindex.LoadWithSidecar(w.IndexPath, w.SidecarPath)
	require.NoError(t, err)
	require.NotEmpty(t, x.BuildID())
	assert.Equal(t, x.BuildID(), sc.BuildID)

	// 第二次运行只写完索引文件
	run()
	require.NoError(t, os.WriteFile(w.SidecarPath, first, 0o644))

	_, err = store.OpenFileVectorStore(w.IndexPath, w.SidecarPath)
	assert.ErrorIs(t, err, vectorindex.ErrSidecarMismatch)
}
