// Package options contains flags and options of the ingest command.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/mycvconnect/mhire/pkg/infra/app"
	llmopts "github.com/mycvconnect/mhire/pkg/options/llm"
	logopts "github.com/mycvconnect/mhire/pkg/options/logger"
	milvusopts "github.com/mycvconnect/mhire/pkg/options/milvus"
	ragopts "github.com/mycvconnect/mhire/pkg/options/rag"
	retryopts "github.com/mycvconnect/mhire/pkg/options/retry"
)

var _ app.CliOptions = (*IngestOptions)(nil)

// IngestOptions contains the configuration of one ingestion run. Flag and
// key names match the server's so both binaries can share a config file.
type IngestOptions struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	RAGOptions       *ragopts.Options         `json:"rag" mapstructure:"rag"`
	RetryOptions     *retryopts.Options       `json:"retry" mapstructure:"retry"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`

	// MaxFileBytes skips knowledge-base files above this size; 0 is unbounded.
	MaxFileBytes int64 `json:"max-file-bytes" mapstructure:"max-file-bytes"`
}

// NewIngestOptions creates IngestOptions with default values.
func NewIngestOptions() *IngestOptions {
	return &IngestOptions{
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		RAGOptions:       ragopts.NewOptions(),
		RetryOptions:     retryopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		MaxFileBytes:     50 << 20,
	}
}

// Flags returns the flags grouped by section.
func (o *IngestOptions) Flags() (fss app.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding.")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.RetryOptions.AddFlags(fss.FlagSet("retry"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))

	fs := fss.FlagSet("misc")
	fs.Int64Var(&o.MaxFileBytes, "max-file-bytes", o.MaxFileBytes, "Skip documents larger than this many bytes (0 is unbounded).")
	return fss
}

// Complete completes all the required options.
func (o *IngestOptions) Complete() error {
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return o.RAGOptions.Complete()
}

// Validate checks whether the options are valid.
func (o *IngestOptions) Validate() error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	for _, err := range o.EmbeddingOptions.Validate() {
		errs = append(errs, fmt.Errorf("embedding: %w", err))
	}
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.RetryOptions.Validate()...)
	if o.RAGOptions.Backend == ragopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	if o.RAGOptions.SourceDir == "" {
		errs = append(errs, fmt.Errorf("rag.source-dir is required"))
	}
	if o.MaxFileBytes < 0 {
		errs = append(errs, fmt.Errorf("max-file-bytes cannot be negative"))
	}
	return utilerrors.NewAggregate(errs)
}
