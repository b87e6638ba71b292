package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// Recovery turns a panic into an ErrPanic response. The full stack is
// logged, never returned to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", GetRequestID(c),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Abort(c, errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
