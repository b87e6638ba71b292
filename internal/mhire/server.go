// Package mhire wires the career assistant service: stores, upstream
// clients, business services and the HTTP transport.
package mhire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/internal/mhire/handler"
	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/router"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/biometric/faceplusplus"
	"github.com/mycvconnect/mhire/pkg/component"
	"github.com/mycvconnect/mhire/pkg/component/milvus"
	"github.com/mycvconnect/mhire/pkg/component/mongodb"
	"github.com/mycvconnect/mhire/pkg/component/redis"
	"github.com/mycvconnect/mhire/pkg/document"
	"github.com/mycvconnect/mhire/pkg/infra/app"
	httpserver "github.com/mycvconnect/mhire/pkg/infra/server/http"
	"github.com/mycvconnect/mhire/pkg/infra/tracing"
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
	"github.com/mycvconnect/mhire/pkg/validator"
)

// Name is the name of the application.
const Name = "mhire"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	SessionOptions   *sessionopts.Options
	BiometricOptions *biometricopts.Options
	RetryOptions     *retryopts.Options
	RedisOptions     *redisopts.Options
	MongoOptions     *mongoopts.Options
	MilvusOptions    *milvusopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the mhire server.
type Server struct {
	http            *httpserver.Server
	closers         []func(context.Context)
	shutdownTimeout time.Duration
}

// NewServer initializes and returns a new Server instance. Every failure
// here is fatal: a server without its index or stores must not start.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	s := &Server{shutdownTimeout: cfg.ShutdownTimeout}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	// 1. 初始化日志
	if _, err := cfg.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting mhire service...")
	tracing.SetupPropagator()

	var pingers []component.Pinger

	// 2. 初始化 Redis（会话与查询向量缓存，可选）
	var redisClient *redis.Client
	if cfg.RedisOptions.Enabled {
		c, err := redis.New(ctx, cfg.RedisOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		redisClient = c
		s.closers = append(s.closers, func(context.Context) { _ = c.Close() })
		pingers = append(pingers, c)
		logger.Infow("Redis client initialized", "addr", cfg.RedisOptions.Addr())
	}

	// 3. 初始化会话存储
	var sessions store.SessionStore
	switch cfg.SessionOptions.Backend {
	case sessionopts.BackendRedis:
		if redisClient == nil {
			return nil, errors.New("session.backend=redis requires redis.enabled")
		}
		sessions = store.NewRedisSessionStore(redisClient, cfg.SessionOptions.TTL, cfg.SessionOptions.MaxTurns)
	default:
		sessions = store.NewMemorySessionStore(cfg.SessionOptions.TTL, cfg.SessionOptions.MaxTurns)
	}
	logger.Infow("Session store initialized", "backend", cfg.SessionOptions.Backend)

	// 4. 初始化验证记录与 FaceSet 存储
	var (
		verifications store.VerificationStore
		facesets      store.FaceSetStore
	)
	if cfg.MongoOptions.Enabled {
		c, err := mongodb.New(ctx, cfg.MongoOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		s.closers = append(s.closers, func(ctx context.Context) { _ = c.Close(ctx) })
		pingers = append(pingers, c)

		ms := store.NewMongoVerificationStore(c)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create mongodb indexes: %w", err)
		}
		verifications = ms

		fss := store.NewMongoFaceSetStore(c)
		if err := fss.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create mongodb indexes: %w", err)
		}
		facesets = fss
		logger.Infow("MongoDB verification store initialized", "mongodb", cfg.MongoOptions.String())
	} else {
		verifications = store.NewMemoryVerificationStore()
		facesets = store.NewMemoryFaceSetStore()
		logger.Warn("MongoDB is disabled, verification records and facesets are kept in memory")
	}

	// 5. 初始化指标与 LLM 供应商
	m := metrics.GetMetrics()
	policy := NewPolicy(cfg.RetryOptions)
	policy.SetObserver(m)
	embedder, err := NewEmbedder(cfg.EmbeddingOptions, cfg.RAGOptions, redisClient, policy)
	if err != nil {
		return nil, err
	}
	chat, err := NewChat(cfg.ChatOptions)
	if err != nil {
		return nil, err
	}

	// 6. 加载向量索引
	var vectors store.VectorStore
	switch cfg.RAGOptions.Backend {
	case ragopts.BackendMilvus:
		c, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		s.closers = append(s.closers, func(ctx context.Context) { _ = c.Close(ctx) })
		pingers = append(pingers, c)
		vectors = store.NewMilvusVectorStore(c)
		logger.Infow("Milvus vector store initialized", "collection", cfg.MilvusOptions.Collection)
	default:
		fs, err := store.OpenFileVectorStore(cfg.RAGOptions.IndexPath, cfg.RAGOptions.SidecarPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load vector index (run mhire-ingest first): %w", err)
		}
		if built := fs.Sidecar().EmbeddingModel; built != "" && built != embedder.Name() {
			logger.Warnw("vector index was built with a different embedding provider",
				"index_provider", built,
				"provider", embedder.Name(),
			)
		}
		vectors = fs
		logger.Infow("Vector index loaded",
			"path", cfg.RAGOptions.IndexPath,
			"chunks", fs.Len(),
			"dimension", fs.Dim(),
		)
	}

	// 7. 初始化 Biz 层
	retriever := biz.NewRetriever(embedder, vectors, cfg.RAGOptions.TopK)
	var classifier *biz.IntentClassifier
	if cfg.RAGOptions.EnableIntent {
		classifier = biz.NewIntentClassifier(chat, policy)
	}
	conversation := biz.NewConversationService(sessions, retriever, chat, classifier, policy, biz.ConversationConfig{
		TopK:        cfg.RAGOptions.TopK,
		TokenBudget: cfg.RAGOptions.TokenBudget,
		Metrics:     m,
	})
	resume := biz.NewResumeParser(document.NewLoader(cfg.RAGOptions.ResumeMaxUploadBytes), chat, policy).WithMetrics(m)

	face, err := faceplusplus.NewClient(faceplusplus.Config{
		BaseURL:   cfg.BiometricOptions.BaseURL,
		APIKey:    cfg.BiometricOptions.APIKey,
		APISecret: cfg.BiometricOptions.APISecret,
		Timeout:   cfg.BiometricOptions.Timeout,
		QPS:       cfg.BiometricOptions.QPS,
		Burst:     cfg.BiometricOptions.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face client: %w", err)
	}
	verification := biz.NewVerificationService(face, verifications, policy, biz.VerificationConfig{
		Threshold:    cfg.BiometricOptions.Threshold,
		HistoryLimit: cfg.BiometricOptions.HistoryLimit,
		Metrics:      m,
	})
	identity := biz.NewIdentityService(face, facesets, verifications, policy, biz.IdentityConfig{
		Threshold: cfg.BiometricOptions.Threshold,
		Metrics:   m,
	})
	logger.Infow("Biz layer initialized",
		"top_k", cfg.RAGOptions.TopK,
		"intent", cfg.RAGOptions.EnableIntent,
		"threshold", verification.Threshold(),
	)

	// 8. 初始化 Handler 层
	var index handler.IndexStats
	if counter, ok := vectors.(handler.IndexStats); ok {
		index = counter
	}
	h := handler.New(conversation, resume, verification, handler.Config{
		RequestTimeout:       cfg.RAGOptions.RequestTimeout,
		MaxUploadBytes:       cfg.BiometricOptions.MaxUploadBytes,
		ResumeMaxUploadBytes: cfg.RAGOptions.ResumeMaxUploadBytes,
	}, pingers...).
		WithIdentity(identity).
		WithStats(m, index)

	// 9. 初始化服务器并注册路由
	s.http = httpserver.NewServer(cfg.HTTPOptions)
	s.http.SetValidator(validator.Global())
	router.Register(s.http.Engine(), cfg.HTTPOptions.BasePath, h)

	ok = true
	logger.Info("mhire service is ready")
	return s, nil
}

// Run serves until ctx is cancelled, then shuts the HTTP server down and
// closes every component.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	if err := s.http.Start(ctx); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutting down mhire service...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Stop(shutdownCtx); err != nil {
		logger.Errorw("http server shutdown failed", "error", err.Error())
		return err
	}
	logger.Info("mhire service stopped")
	return nil
}

// close releases components in reverse order of creation.
func (s *Server) close() {
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i](ctx)
	}
	s.closers = nil
	_ = logger.Flush()
}
