package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/pkg/validator"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

func (h *Handler) userID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", apierrors.ErrInvalidRequest.WithMessage("user_id is required")
	}
	if err := h.validate.Var(id, validator.TagIdentifier); err != nil {
		return "", apierrors.ErrInvalidRequest.WithMessage("user_id is not a valid identifier")
	}
	return id, nil
}

// threshold parses the optional confidence_threshold field. The range is
// checked by the service.
func threshold(c *gin.Context) (float64, error) {
	raw := strings.TrimSpace(c.PostForm("confidence_threshold"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierrors.ErrInvalidRequest.WithMessage("confidence_threshold must be a number")
	}
	return v, nil
}

// FaceVerification handles POST /face-verification. The form carries
// user_id, the "image" to check, an optional confidence_threshold and
// optionally "reference_image" or "reference_token". Without a reference
// the enrolled one is used.
func (h *Handler) FaceVerification(c *gin.Context) {
	userID, err := h.userID(c.PostForm("user_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	th, err := threshold(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	image, _, err := h.formFile(c, "image")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if image == nil {
		response.Fail(c, apierrors.ErrInvalidRequest.WithMessage("image is required"))
		return
	}
	reference, _, err := h.formFile(c, "reference_image")
	if err != nil {
		response.Fail(c, err)
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	res, err := h.verification.Verify(ctx, biz.VerifyRequest{
		UserID:         userID,
		Image:          image,
		ReferenceImage: reference,
		ReferenceToken: strings.TrimSpace(c.PostForm("reference_token")),
		Threshold:      th,
	})
	if clientGone(c, "face verification") {
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// EnrollReference handles POST /face-verification/reference.
func (h *Handler) EnrollReference(c *gin.Context) {
	userID, err := h.userID(c.PostForm("user_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	image, _, err := h.formFile(c, "image")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if image == nil {
		response.Fail(c, apierrors.ErrInvalidRequest.WithMessage("image is required"))
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	res, err := h.verification.Enroll(ctx, userID, image)
	if clientGone(c, "face enrollment") {
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// VerificationHistory handles GET /verification/:user_id.
func (h *Handler) VerificationHistory(c *gin.Context) {
	userID, err := h.userID(c.Param("user_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	res, err := h.verification.History(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// DuplicateCheck handles POST /face-verification/duplicate.
func (h *Handler) DuplicateCheck(c *gin.Context) {
	if h.identity == nil {
		response.Fail(c, apierrors.ErrServiceUnavailable.WithMessage("identity checks are not configured"))
		return
	}
	image, _, err := h.formFile(c, "image")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if image == nil {
		response.Fail(c, apierrors.ErrInvalidRequest.WithMessage("image is required"))
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	res, err := h.identity.CheckDuplicate(ctx, image)
	if clientGone(c, "duplicate check") {
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// NIDVerification handles POST /nid-verification: "nid_card" and
// "face_photo" uploads, an optional confidence_threshold (50-95) and an
// optional user_id for the audit trail.
func (h *Handler) NIDVerification(c *gin.Context) {
	if h.identity == nil {
		response.Fail(c, apierrors.ErrServiceUnavailable.WithMessage("identity checks are not configured"))
		return
	}
	th, err := threshold(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var userID string
	if raw := c.PostForm("user_id"); strings.TrimSpace(raw) != "" {
		if userID, err = h.userID(raw); err != nil {
			response.Fail(c, err)
			return
		}
	}

	req := biz.NIDRequest{UserID: userID, Threshold: th}
	for field, dst := range map[string]*[]byte{"nid_card": &req.NIDCard, "face_photo": &req.FacePhoto} {
		data, _, err := h.formFile(c, field)
		if err != nil {
			response.Fail(c, err)
			return
		}
		*dst = data
	}
	if req.NIDCard == nil {
		response.Fail(c, apierrors.ErrInvalidRequest.WithMessage("nid_card is required"))
		return
	}
	if req.FacePhoto == nil {
		response.Fail(c, apierrors.ErrInvalidRequest.WithMessage("face_photo is required"))
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	res, err := h.identity.VerifyNID(ctx, req)
	if clientGone(c, "nid verification") {
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}
