package response

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mycvconnect/mhire/pkg/utils/errors"
)

// HeaderRequestID is the header carrying the request id. The request id
// middleware sets it on the response before handlers run.
const HeaderRequestID = "X-Request-ID"

func prepare(c *gin.Context, r *Response) *Response {
	return r.WithRequestID(c.Writer.Header().Get(HeaderRequestID)).
		WithTimestamp(time.Now().UnixMilli())
}

// OK writes a successful response with data.
func OK(c *gin.Context, data any) {
	resp := prepare(c, Success(data))
	c.JSON(resp.HTTPStatus(), resp)
}

// Fail converts err to an Errno and writes it. Unknown errors become
// ErrInternal; their text never reaches the client.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	resp := prepare(c, Err(e))
	c.JSON(e.HTTPStatus(), resp)
}

// Abort writes the error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}
