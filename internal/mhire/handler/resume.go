package handler

import (
	"bytes"

	"github.com/gin-gonic/gin"

	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// Resume handles POST /resume: a multipart upload in field "file".
func (h *Handler) Resume(c *gin.Context) {
	data, fh, err := readFormFile(c, "file", h.config.ResumeMaxUploadBytes)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if fh == nil {
		response.Fail(c, apierrors.ErrInvalidRequest.WithMessage("file is required"))
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	res, err := h.resume.Parse(ctx, fh.Filename, bytes.NewReader(data))
	if clientGone(c, "resume") {
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}
