// Package http wraps a gin engine in an http.Server with the configured
// timeouts and graceful shutdown.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/infra/middleware"
	options "github.com/mycvconnect/mhire/pkg/options/server/http"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// Validator validates bound request structs.
type Validator interface {
	Validate(obj any) error
}

type ginValidator struct {
	validator Validator
}

func (v *ginValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	return v.validator.Validate(obj)
}

func (v *ginValidator) Engine() any { return nil }

// Server is the HTTP transport.
type Server struct {
	opts   *options.Options
	engine *gin.Engine
	server *http.Server
	ln     net.Listener
}

// NewServer creates a gin engine with the standard middleware chain:
// recovery, request id, access log, body limit.
func NewServer(opts *options.Options) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}
	gin.SetMode(opts.Mode)

	engine := gin.New()
	// 中间件必须在注册路由前添加，子路由组会复制当前的 handlers
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger("/healthz"),
		middleware.BodyLimit(opts.MaxBodyBytes),
	)
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	engine.NoMethod(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	engine.HandleMethodNotAllowed = true

	return &Server{opts: opts, engine: engine}
}

// Name returns the server name.
func (s *Server) Name() string { return "http[gin]" }

// Engine returns the underlying gin.Engine for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// SetValidator installs v as gin's binding validator.
func (s *Server) SetValidator(v Validator) {
	binding.Validator = &ginValidator{validator: v}
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.opts.Addr
	}
	return s.ln.Addr().String()
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously; serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server stopped", "addr", ln.Addr().String(), "error", err)
		}
	}()
	logger.Infow("http server started", "addr", ln.Addr().String())
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
