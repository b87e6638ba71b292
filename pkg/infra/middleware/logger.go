package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
)

// Logger writes one structured access log line per request. Paths in
// skip (health checks, typically) are not logged.
func Logger(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skipped[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"latency_ms", latency.Milliseconds(),
			"bytes", c.Writer.Size(),
			"request_id", GetRequestID(c),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Errorw("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warnw("HTTP Request", fields...)
		default:
			logger.Infow("HTTP Request", fields...)
		}
	}
}
