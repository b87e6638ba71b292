package faceplusplus

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is an error_message returned by Face++.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("faceplusplus: %s (status %d)", e.Message, e.StatusCode)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	if strings.HasPrefix(e.Message, "CONCURRENCY_LIMIT_EXCEEDED") {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError
}

// Is lets errors.Is(err, ErrBadImage) match image rejections.
func (e *APIError) Is(target error) bool {
	if target != ErrBadImage {
		return false
	}
	return isImageError(e.Message)
}

var imageErrorPrefixes = []string{
	"IMAGE_ERROR_UNSUPPORTED_FORMAT",
	"INVALID_IMAGE_SIZE",
	"IMAGE_FILE_TOO_LARGE",
	"IMAGE_DOWNLOAD_TIMEOUT",
	"INVALID_IMAGE_URL",
	"INVALID_FACE_TOKEN",
}

func isImageError(msg string) bool {
	for _, p := range imageErrorPrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// IsClientError reports whether err describes a problem with the caller's
// input rather than the upstream service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoFace) || errors.Is(err, ErrMultipleFaces) || errors.Is(err, ErrBadImage)
}
