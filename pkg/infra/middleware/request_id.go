// Package middleware holds the gin middleware shared by the mhire HTTP
// server.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mycvconnect/mhire/pkg/utils/requestid"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// ContextKeyRequestID is the gin context key holding the request id.
const ContextKeyRequestID = "request_id"

const maxRequestIDLen = 128

// RequestID reuses a sane incoming X-Request-ID or generates a UUID. The
// id is written to the response header, the gin context and the request
// context so that services can log it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(response.HeaderRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		c.Header(response.HeaderRequestID, id)
		c.Set(ContextKeyRequestID, id)
		c.Request = c.Request.WithContext(requestid.NewContext(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if b := id[i]; b < 0x21 || b > 0x7e {
			return false
		}
	}
	return true
}
