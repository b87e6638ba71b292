// Package options contains flags and options for initializing the mhire server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/mycvconnect/mhire/internal/mhire"
	"github.com/mycvconnect/mhire/pkg/infra/app"
	biometricopts "github.com/mycvconnect/mhire/pkg/options/biometric"
	llmopts "github.com/mycvconnect/mhire/pkg/options/llm"
	logopts "github.com/mycvconnect/mhire/pkg/options/logger"
	milvusopts "github.com/mycvconnect/mhire/pkg/options/milvus"
	mongoopts "github.com/mycvconnect/mhire/pkg/options/mongodb"
	ragopts "github.com/mycvconnect/mhire/pkg/options/rag"
	redisopts "github.com/mycvconnect/mhire/pkg/options/redis"
	retryopts "github.com/mycvconnect/mhire/pkg/options/retry"
	httpopts "github.com/mycvconnect/mhire/pkg/options/server/http"
	sessionopts "github.com/mycvconnect/mhire/pkg/options/session"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains retrieval and prompt configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// SessionOptions selects the chat history store.
	SessionOptions *sessionopts.Options `json:"session" mapstructure:"session"`

	// BiometricOptions configures Face++ and the match threshold.
	BiometricOptions *biometricopts.Options `json:"biometric" mapstructure:"biometric"`

	// RetryOptions is the retry and breaker policy of upstream calls.
	RetryOptions *retryopts.Options `json:"retry" mapstructure:"retry"`

	RedisOptions  *redisopts.Options  `json:"redis" mapstructure:"redis"`
	MongoOptions  *mongoopts.Options  `json:"mongodb" mapstructure:"mongodb"`
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		SessionOptions:   sessionopts.NewOptions(),
		BiometricOptions: biometricopts.NewOptions(),
		RetryOptions:     retryopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MongoOptions:     mongoopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		ShutdownTimeout:  30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding.")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat.")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.SessionOptions.AddFlags(fss.FlagSet("session"))
	o.BiometricOptions.AddFlags(fss.FlagSet("biometric"))
	o.RetryOptions.AddFlags(fss.FlagSet("retry"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MongoOptions.AddFlags(fss.FlagSet("mongodb"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.BiometricOptions.Complete(); err != nil {
		return fmt.Errorf("biometric: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.MongoOptions.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, prefixed("chat", o.ChatOptions.Validate())...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	errs = append(errs, o.BiometricOptions.Validate()...)
	errs = append(errs, o.RetryOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.MongoOptions.Validate()...)
	if o.RAGOptions.Backend == ragopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}

	if o.ChatOptions.Provider == "hashing" {
		errs = append(errs, fmt.Errorf("chat.provider: hashing only provides embeddings"))
	}
	if o.SessionOptions.Backend == sessionopts.BackendRedis && !o.RedisOptions.Enabled {
		errs = append(errs, fmt.Errorf("session.backend=redis requires redis.enabled"))
	}
	if o.HTTPOptions.WriteTimeout <= o.RAGOptions.RequestTimeout {
		errs = append(errs, fmt.Errorf("http.write-timeout must exceed rag.request-timeout"))
	}
	// 上传大小受请求体上限约束
	if o.RAGOptions.ResumeMaxUploadBytes > o.HTTPOptions.MaxBodyBytes {
		errs = append(errs, fmt.Errorf("rag.resume-max-upload-bytes must not exceed http.max-body-bytes"))
	}
	if o.BiometricOptions.MaxUploadBytes > o.HTTPOptions.MaxBodyBytes {
		errs = append(errs, fmt.Errorf("biometric.max-upload-bytes must not exceed http.max-body-bytes"))
	}

	return utilerrors.NewAggregate(errs)
}

func prefixed(prefix string, errs []error) []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = fmt.Errorf("%s: %w", prefix, err)
	}
	return out
}

// Config builds a mhire.Config based on ServerOptions.
func (o *ServerOptions) Config() (*mhire.Config, error) {
	return &mhire.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		SessionOptions:   o.SessionOptions,
		BiometricOptions: o.BiometricOptions,
		RetryOptions:     o.RetryOptions,
		RedisOptions:     o.RedisOptions,
		MongoOptions:     o.MongoOptions,
		MilvusOptions:    o.MilvusOptions,
		ShutdownTimeout:  o.ShutdownTimeout,
	}, nil
}
