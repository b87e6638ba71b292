// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Vector backends.
const (
	BackendFile   = "file"
	BackendMilvus = "milvus"
)

// Options contains RAG-specific configuration.
type Options struct {
	// ChunkSize is the chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// SourceDir holds the knowledge-base documents read by the ingest command.
	SourceDir string `json:"source-dir" mapstructure:"source-dir"`

	// IndexPath is the persisted vector index.
	IndexPath string `json:"index-path" mapstructure:"index-path"`

	// SidecarPath is the chunk text store written next to the index.
	SidecarPath string `json:"sidecar-path" mapstructure:"sidecar-path"`

	// Backend selects where chunk vectors live: file or milvus.
	Backend string `json:"backend" mapstructure:"backend"`

	// EmbedBatchSize is the number of texts per embedding request.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// EmbedWorkers bounds the number of batches in flight during ingestion.
	EmbedWorkers int `json:"embed-workers" mapstructure:"embed-workers"`

	// TokenBudget caps the estimated prompt size of a chat call.
	TokenBudget int `json:"token-budget" mapstructure:"token-budget"`

	// EnableIntent classifies each message before answering.
	EnableIntent bool `json:"enable-intent" mapstructure:"enable-intent"`

	// CacheTTL keeps query embeddings in Redis; zero disables the cache.
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`

	// RequestTimeout bounds a chat turn once the client has gone away.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`

	// ResumeMaxUploadBytes caps an uploaded CV file.
	ResumeMaxUploadBytes int64 `json:"resume-max-upload-bytes" mapstructure:"resume-max-upload-bytes"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		TopK:           2,
		SourceDir:      "data/knowledge",
		IndexPath:      "data/index/mhire.idx",
		SidecarPath:    "data/index/mhire.chunks.json",
		Backend:        BackendFile,
		EmbedBatchSize: 64,
		EmbedWorkers:   4,
		TokenBudget:    3000,
		EnableIntent:   true,
		CacheTTL:       0,
		RequestTimeout: 120 * time.Second,

		ResumeMaxUploadBytes: 10 << 20,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per query.")
	fs.StringVar(&o.SourceDir, p+"source-dir", o.SourceDir, "Directory of knowledge-base documents.")
	fs.StringVar(&o.IndexPath, p+"index-path", o.IndexPath, "Path of the persisted vector index.")
	fs.StringVar(&o.SidecarPath, p+"sidecar-path", o.SidecarPath, "Path of the chunk text sidecar.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Vector backend: file or milvus.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Texts per embedding request.")
	fs.IntVar(&o.EmbedWorkers, p+"embed-workers", o.EmbedWorkers, "Concurrent embedding batches during ingestion.")
	fs.IntVar(&o.TokenBudget, p+"token-budget", o.TokenBudget, "Estimated token budget of a chat prompt.")
	fs.BoolVar(&o.EnableIntent, p+"enable-intent", o.EnableIntent, "Classify messages before answering.")
	fs.DurationVar(&o.CacheTTL, p+"cache-ttl", o.CacheTTL, "Query-embedding cache TTL in Redis (0 disables).")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Upper bound of a chat turn after client disconnect.")
	fs.Int64Var(&o.ResumeMaxUploadBytes, p+"resume-max-upload-bytes", o.ResumeMaxUploadBytes, "Maximum accepted CV file size in bytes.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be within [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.Backend != BackendFile && o.Backend != BackendMilvus {
		errs = append(errs, fmt.Errorf("rag.backend must be %q or %q", BackendFile, BackendMilvus))
	}
	if o.Backend == BackendFile && (o.IndexPath == "" || o.SidecarPath == "") {
		errs = append(errs, fmt.Errorf("rag.index-path and rag.sidecar-path are required for the file backend"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.embed-batch-size must be positive"))
	}
	if o.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("rag.token-budget must be positive"))
	}
	if o.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("rag.cache-ttl cannot be negative"))
	}
	if o.ResumeMaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("rag.resume-max-upload-bytes must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.EmbedWorkers <= 0 {
		o.EmbedWorkers = 1
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 120 * time.Second
	}
	return nil
}
