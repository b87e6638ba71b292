package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/infra/middleware"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "mhire"

// Stats handles GET /stats: the service counters plus the index size.
func (h *Handler) Stats(c *gin.Context) {
	if h.metrics == nil {
		response.Fail(c, apierrors.ErrServiceUnavailable.WithMessage("metrics are not enabled"))
		return
	}
	stats := map[string]any{
		"metrics": h.metrics.Stats(),
	}

	// 索引统计失败不影响其余指标
	if h.index != nil {
		index := map[string]any{"backend": h.index.Name()}
		count, err := h.index.Count(c.Request.Context())
		if err != nil {
			logger.Warnw("failed to count index chunks",
				"backend", h.index.Name(),
				"request_id", middleware.GetRequestID(c),
				"error", err.Error(),
			)
			index["error"] = "unavailable"
		} else {
			index["chunks"] = count
		}
		stats["index"] = index
	}
	response.OK(c, stats)
}

// Metrics handles GET /metrics in the Prometheus text format.
func (h *Handler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export(metricsNamespace)))
}
