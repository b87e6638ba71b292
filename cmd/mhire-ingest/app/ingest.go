// Package app provides the mhire-ingest command.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/cmd/mhire-ingest/app/options"
	"github.com/mycvconnect/mhire/internal/mhire"
	"github.com/mycvconnect/mhire/internal/mhire/ingest"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/component/milvus"
	"github.com/mycvconnect/mhire/pkg/infra/app"
	"github.com/mycvconnect/mhire/pkg/infra/tracing"
	ragopts "github.com/mycvconnect/mhire/pkg/options/rag"
	"github.com/mycvconnect/mhire/pkg/utils/json"
)

// Name is the name of the command.
const Name = "mhire-ingest"

const commandDesc = `Build the mhire knowledge-base index.

Every .pdf, .docx, .txt and .md file below rag.source-dir is parsed,
split into overlapping chunks and embedded. The vectors are written to the
index file and its chunk sidecar (rag.backend=file) or to a Milvus
collection (rag.backend=milvus). Documents that fail are reported and left
out; the command fails when nothing could be indexed.`

// NewApp creates the ingest command.
func NewApp() *app.App {
	opts := options.NewIngestOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		}),
	)
}

func run(ctx context.Context, opts *options.IngestOptions) error {
	// 1. 初始化日志
	if _, err := opts.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Flush() }()
	tracing.SetupPropagator()

	// 2. 初始化 Embedding
	policy := mhire.NewPolicy(opts.RetryOptions)
	embedder, err := mhire.NewEmbedder(opts.EmbeddingOptions, opts.RAGOptions, nil, policy)
	if err != nil {
		return err
	}

	// 3. 选择写入后端
	var writer ingest.Writer
	switch opts.RAGOptions.Backend {
	case ragopts.BackendMilvus:
		client, err := milvus.New(ctx, opts.MilvusOptions)
		if err != nil {
			return fmt.Errorf("failed to initialize milvus: %w", err)
		}
		defer func() { _ = client.Close(context.WithoutCancel(ctx)) }()
		writer = &ingest.MilvusWriter{Store: store.NewMilvusVectorStore(client)}
	default:
		writer = &ingest.FileWriter{
			IndexPath:   opts.RAGOptions.IndexPath,
			SidecarPath: opts.RAGOptions.SidecarPath,
		}
	}

	// 4. 执行入库
	pipeline, err := ingest.NewPipeline(ingest.Config{
		SourceDir:    opts.RAGOptions.SourceDir,
		ChunkSize:    opts.RAGOptions.ChunkSize,
		ChunkOverlap: opts.RAGOptions.ChunkOverlap,
		Workers:      opts.RAGOptions.EmbedWorkers,
		MaxFileBytes: opts.MaxFileBytes,
	}, embedder, writer)
	if err != nil {
		return err
	}

	report, err := pipeline.Run(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		if errors.Is(err, ingest.ErrNothingIndexed) {
			return fmt.Errorf("%w (see failed_documents above)", err)
		}
		return err
	}
	return nil
}

func printReport(r *ingest.Report) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		logger.Warnw("failed to encode ingest report", "error", err.Error())
		return
	}
	fmt.Fprintln(os.Stdout, string(out))
}
