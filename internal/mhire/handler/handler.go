// Package handler provides the HTTP handlers of the mhire service.
package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/component"
	"github.com/mycvconnect/mhire/pkg/infra/middleware"
	"github.com/mycvconnect/mhire/pkg/validator"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
)

// ChatService answers chat messages.
type ChatService interface {
	ChatWithCategory(ctx context.Context, sessionID, message string, onCategory func(model.Category)) (*biz.ChatResult, error)
	ChatStream(ctx context.Context, sessionID, message string, hooks biz.ChatHooks) (*biz.ChatResult, error)
}

// ResumeService extracts structured data from CV files.
type ResumeService interface {
	Parse(ctx context.Context, filename string, r io.Reader) (*model.ResumeData, error)
}

// VerificationService compares faces and reports past attempts.
type VerificationService interface {
	Verify(ctx context.Context, req biz.VerifyRequest) (*model.VerificationResponse, error)
	History(ctx context.Context, userID string) (*model.VerificationHistory, error)
	Enroll(ctx context.Context, userID string, image []byte) (*model.EnrollResponse, error)
}

// IdentityService detects duplicate faces and checks NID cards.
type IdentityService interface {
	CheckDuplicate(ctx context.Context, image []byte) (*model.DuplicateCheckResponse, error)
	VerifyNID(ctx context.Context, req biz.NIDRequest) (*model.NIDVerificationResponse, error)
}

// IndexStats reports the size of the vector index.
type IndexStats interface {
	Name() string
	Count(ctx context.Context) (int64, error)
}

// Config 处理器配置。
type Config struct {
	// RequestTimeout 上游调用的总超时，与客户端连接无关。
	RequestTimeout time.Duration
	// MaxUploadBytes 单个图片上传的大小上限。
	MaxUploadBytes int64
	// ResumeMaxUploadBytes 简历文件的大小上限。
	ResumeMaxUploadBytes int64
	// HealthTimeout 健康检查中每个组件的 Ping 超时。
	HealthTimeout time.Duration
}

// Handler serves the mhire API.
type Handler struct {
	chat         ChatService
	resume       ResumeService
	verification VerificationService
	identity     IdentityService
	metrics      *metrics.Metrics
	index        IndexStats
	components   []component.Pinger
	validate     *validator.Validator
	config       Config
}

// New creates a Handler. components are pinged by the health check.
func New(chat ChatService, resume ResumeService, verification VerificationService, config Config, components ...component.Pinger) *Handler {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 120 * time.Second
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.ResumeMaxUploadBytes <= 0 {
		config.ResumeMaxUploadBytes = config.MaxUploadBytes
	}
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 2 * time.Second
	}
	return &Handler{
		chat:         chat,
		resume:       resume,
		verification: verification,
		components:   components,
		validate:     validator.Global(),
		config:       config,
	}
}

// WithIdentity enables the duplicate face and NID routes.
func (h *Handler) WithIdentity(identity IdentityService) *Handler {
	h.identity = identity
	return h
}

// WithStats enables the stats and metrics routes. index may be nil.
func (h *Handler) WithStats(m *metrics.Metrics, index IndexStats) *Handler {
	h.metrics = m
	h.index = index
	return h
}

// upstreamContext detaches the work from the client connection: an
// aborted request lets the upstream call finish and its result is dropped.
func (h *Handler) upstreamContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.config.RequestTimeout)
}

// clientGone logs and reports whether the client disconnected while the
// upstream call ran.
func clientGone(c *gin.Context, what string) bool {
	if c.Request.Context().Err() == nil {
		return false
	}
	logger.Infow("client disconnected, result discarded",
		"path", c.FullPath(),
		"result", what,
		"request_id", middleware.GetRequestID(c),
	)
	return true
}

// bindError maps binding and validation failures to API errors.
func bindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierrors.ErrRequestTooLarge.WithCause(err)
	}
	var verrs *validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apierrors.ErrInvalidRequest.WithMessage(verrs.First())
	}
	return apierrors.ErrInvalidRequest.WithMessage("malformed request body").WithCause(err)
}

// formFile reads the named image upload. A missing file yields nil
// without error.
func (h *Handler) formFile(c *gin.Context, name string) ([]byte, *multipart.FileHeader, error) {
	return readFormFile(c, name, h.config.MaxUploadBytes)
}

func readFormFile(c *gin.Context, name string, limit int64) ([]byte, *multipart.FileHeader, error) {
	fh, err := c.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, bindError(err)
	}
	if fh.Size > limit {
		return nil, nil, apierrors.ErrFileTooLarge.WithMessagef("%s exceeds %d bytes", name, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apierrors.ErrInvalidRequest.WithMessagef("cannot read %s", name).WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, nil, apierrors.ErrInvalidRequest.WithMessagef("cannot read %s", name).WithCause(err)
	}
	if int64(len(data)) > limit {
		return nil, nil, apierrors.ErrFileTooLarge.WithMessagef("%s exceeds %d bytes", name, limit)
	}
	return data, fh, nil
}
