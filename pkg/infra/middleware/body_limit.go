package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// BodyLimit rejects bodies larger than maxSize. A declared Content-Length
// over the limit is refused before reading; otherwise the body is wrapped
// in http.MaxBytesReader and handlers see *http.MaxBytesError.
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = 4 << 20
	}
	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", maxSize,
				"request_id", GetRequestID(c),
			)
			response.Abort(c, errors.ErrRequestTooLarge)
			return
		}
		req.Body = http.MaxBytesReader(c.Writer, req.Body, maxSize)
		c.Next()
	}
}
