// Package ingest builds the knowledge-base index offline: documents are
// discovered, parsed on a worker pool, chunked, embedded batch by batch
// and written to the configured vector backend.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/pkg/chunker"
	"github.com/mycvconnect/mhire/pkg/document"
	"github.com/mycvconnect/mhire/pkg/infra/pool"
)

// ErrNothingIndexed is returned when no chunk survived the run.
var ErrNothingIndexed = errors.New("ingest: no document could be indexed")

// Config 离线入库配置。
type Config struct {
	// SourceDir 知识库文档目录。
	SourceDir string
	// ChunkSize 分块大小（字符数）。
	ChunkSize int
	// ChunkOverlap 相邻分块的重叠字符数。
	ChunkOverlap int
	// Workers 并发解析文档的协程数。
	Workers int
	// MaxFileBytes 单个文件大小上限，0 表示不限制。
	MaxFileBytes int64
}

// FailedDocument names a document left out of the index.
type FailedDocument struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarises a run.
type Report struct {
	Backend         string           `json:"backend"`
	Documents       int              `json:"documents"`
	Indexed         int              `json:"indexed"`
	Chunks          int              `json:"chunks"`
	Dimension       int              `json:"dimension"`
	Batches         int              `json:"batches"`
	FailedBatches   []int            `json:"failed_batches,omitempty"`
	FailedDocuments []FailedDocument `json:"failed_documents,omitempty"`
	Duration        time.Duration    `json:"duration"`
}

// Build is what a Writer persists: chunks and their vectors in insertion
// order.
type Build struct {
	Chunks       []chunker.Chunk
	Vectors      [][]float32
	Dimension    int
	ChunkSize    int
	ChunkOverlap int
	Model        string
}

// Writer persists a finished build.
type Writer interface {
	Write(ctx context.Context, b *Build) error
	Name() string
}

// Pipeline runs one ingestion.
type Pipeline struct {
	config   Config
	chunker  *chunker.Chunker
	loader   *document.Loader
	embedder *biz.BatchEmbedder
	writer   Writer
}

// NewPipeline validates the chunking parameters. An invalid size/overlap
// pair fails with chunker.ErrInvalidConfiguration.
func NewPipeline(config Config, embedder *biz.BatchEmbedder, writer Writer) (*Pipeline, error) {
	ck, err := chunker.New(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if config.SourceDir == "" {
		return nil, fmt.Errorf("%w: source directory is required", chunker.ErrInvalidConfiguration)
	}
	return &Pipeline{
		config:   config,
		chunker:  ck,
		loader:   document.NewLoader(config.MaxFileBytes),
		embedder: embedder,
		writer:   writer,
	}, nil
}

// Run ingests every supported file below the source directory. Documents
// that cannot be parsed or embedded are reported and left out; the rest
// is written. Run fails only when nothing could be indexed or the writer
// fails.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{Backend: p.writer.Name()}

	// 1. 发现文档
	paths, err := document.Discover(ctx, p.config.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("discover documents: %w", err)
	}
	report.Documents = len(paths)
	logger.Infow("documents discovered", "source_dir", p.config.SourceDir, "documents", len(paths))
	if len(paths) == 0 {
		return report, ErrNothingIndexed
	}

	// 2. 并发解析
	docs, err := p.load(ctx, paths, report)
	if err != nil {
		return nil, err
	}

	// 3. 分块
	var chunks []chunker.Chunk
	var owner []int
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		for _, ch := range p.chunker.Split(*doc) {
			chunks = append(chunks, ch)
			owner = append(owner, i)
		}
	}
	if len(chunks) == 0 {
		return report, ErrNothingIndexed
	}

	// 4. 顺序嵌入，失败批次在最后重试一次
	vectors, failed := p.embed(ctx, chunks, report)
	for _, b := range failed {
		bs := p.embedder.BatchSize()
		for j := b * bs; j < min((b+1)*bs, len(chunks)); j++ {
			if i := owner[j]; docs[i] != nil {
				report.FailedDocuments = append(report.FailedDocuments, FailedDocument{
					Path:  paths[i],
					Error: fmt.Sprintf("embedding batch %d failed", b),
				})
				docs[i] = nil
			}
		}
	}

	// 5. 只保留完整嵌入的文档
	build := &Build{
		ChunkSize:    p.chunker.Size(),
		ChunkOverlap: p.chunker.Overlap(),
		Model:        p.embedder.Name(),
	}
	for j, ch := range chunks {
		if docs[owner[j]] == nil {
			continue
		}
		build.Chunks = append(build.Chunks, ch)
		build.Vectors = append(build.Vectors, vectors[j])
	}
	for _, d := range docs {
		if d != nil {
			report.Indexed++
		}
	}
	if len(build.Chunks) == 0 {
		return report, ErrNothingIndexed
	}
	build.Dimension = len(build.Vectors[0])
	report.Chunks = len(build.Chunks)
	report.Dimension = build.Dimension

	// 6. 写入
	if err := p.writer.Write(ctx, build); err != nil {
		return report, fmt.Errorf("write %s index: %w", p.writer.Name(), err)
	}
	report.Duration = time.Since(start)
	logger.Infow("ingestion completed",
		"backend", report.Backend,
		"documents", report.Documents,
		"indexed", report.Indexed,
		"chunks", report.Chunks,
		"failed_documents", len(report.FailedDocuments),
		"duration", report.Duration.String(),
	)
	return report, nil
}

func (p *Pipeline) load(ctx context.Context, paths []string, report *Report) ([]*document.Document, error) {
	workers, err := pool.New("ingest", pool.DefaultConfig(p.config.Workers))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := workers.Release(5 * time.Second); err != nil {
			logger.Warnw("ingest pool release timed out", "error", err.Error())
		}
	}()

	docs := make([]*document.Document, len(paths))
	errs := make([]error, len(paths))
	err = workers.ForEach(ctx, len(paths), func(_ context.Context, i int) {
		doc, err := p.loader.Load(paths[i])
		if err != nil {
			errs[i] = err
			return
		}
		docs[i] = &doc
	})
	if err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		logger.Warnw("document skipped", "path", paths[i], "error", err.Error())
		report.FailedDocuments = append(report.FailedDocuments, FailedDocument{Path: paths[i], Error: err.Error()})
	}
	return docs, nil
}

// embed returns the vectors and the batches that failed twice.
func (p *Pipeline) embed(ctx context.Context, chunks []chunker.Chunk, report *Report) ([][]float32, []int) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	report.Batches = p.embedder.Batches(len(texts))

	vectors, err := p.embedder.Embed(ctx, texts)
	var ese *biz.EmbeddingServiceError
	if err == nil || !errors.As(err, &ese) {
		return vectors, nil
	}

	logger.Warnw("retrying failed embedding batches", "batches", ese.FailedBatches)
	retried, err := p.embedder.EmbedBatches(ctx, texts, ese.FailedBatches)
	if retried == nil {
		report.FailedBatches = ese.FailedBatches
		return vectors, ese.FailedBatches
	}
	for _, b := range ese.FailedBatches {
		start, end := ese.Inputs(b, len(texts))
		copy(vectors[start:end], retried[start:end])
	}
	if err == nil || !errors.As(err, &ese) {
		return vectors, nil
	}
	report.FailedBatches = ese.FailedBatches
	return vectors, ese.FailedBatches
}
