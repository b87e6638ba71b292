package biz

import (
	"errors"
	"fmt"

	"github.com/mycvconnect/mhire/pkg/biometric/faceplusplus"
	"github.com/mycvconnect/mhire/pkg/document"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
)

// EmbeddingServiceError reports the batches that still failed after the
// retry policy gave up. Inputs of other batches were embedded.
type EmbeddingServiceError struct {
	// FailedBatches holds zero-based batch indexes in ascending order.
	FailedBatches []int
	BatchSize     int
	Batches       int
	Cause         error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service: %d of %d batches failed (batch size %d): %v",
		len(e.FailedBatches), e.Batches, e.BatchSize, e.Cause)
}

// Unwrap exposes both the API error code and the last upstream cause.
func (e *EmbeddingServiceError) Unwrap() []error {
	return []error{apierrors.ErrEmbeddingService, e.Cause}
}

// Inputs returns the input index range [start, end) of batch i for n inputs.
func (e *EmbeddingServiceError) Inputs(i, n int) (start, end int) {
	start = i * e.BatchSize
	return start, min(start+e.BatchSize, n)
}

func mapDocumentError(err error) error {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return apierrors.ErrUnsupportedFile.WithCause(err)
	case errors.Is(err, document.ErrTooLarge):
		return apierrors.ErrFileTooLarge.WithCause(err)
	case errors.Is(err, document.ErrEmpty):
		return apierrors.ErrEmptyDocument.WithCause(err)
	default:
		return apierrors.ErrInvalidRequest.WithMessage("document could not be read").WithCause(err)
	}
}

// mapFaceError separates problems with the submitted images (400) from
// failures of the face service itself (502).
func mapFaceError(err error) error {
	switch {
	case errors.Is(err, faceplusplus.ErrNoFace),
		errors.Is(err, faceplusplus.ErrMultipleFaces),
		errors.Is(err, faceplusplus.ErrBadImage),
		errors.Is(err, faceplusplus.ErrUndecodable):
		return apierrors.ErrInvalidImage.WithMessage(err.Error()).WithCause(err)
	default:
		return apierrors.ErrVerificationService.WithCause(err)
	}
}
