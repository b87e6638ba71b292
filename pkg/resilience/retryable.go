package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/mycvconnect/mhire/pkg/utils/httpclient"
)

// temporary is implemented by errors that know whether they are transient,
// e.g. *httpclient.StatusError or Face++ concurrency limit errors.
type temporary interface {
	Temporary() bool
}

// IsRetryable 判断错误是否可重试：网络错误、超时、5xx、429、408 及
// 自报为临时错误的类型。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	// 单次调用超时视为可重试；调用方 ctx 是否已结束由 RetryWithBackoff 判断。
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// *url.Error 也实现了 Temporary，需先按网络错误处理。
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// permanentError stops retries while keeping the cause visible to the
// breaker.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable, e.g. a stream that already
// delivered part of its output. The breaker still judges the cause.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// upstreamFailed reports whether err counts against the breaker.
func upstreamFailed(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		err = perm.err
	}
	return IsRetryable(err)
}

func retryAfter(err error) time.Duration {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}
