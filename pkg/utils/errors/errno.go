// Package errors provides the structured error codes used by mhire.
//
// Error Code Format: AABBCCC (7 digits)
//
//	AA  (00-99): Service code - 00 is shared, 20 is mhire
//	BB  (00-99): Category code - request, resource, internal, network ...
//	CCC (000-999): Sequence number within the category
//
// Usage:
//
//	// Using predefined errors
//	return errors.ErrInvalidRequest.WithMessage("message is required")
//
//	// Wrapping underlying errors
//	return errors.ErrUpstreamModel.WithCause(err)
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Errno represents a structured error with code and messages.
type Errno struct {
	// Code is the unique error code
	Code int `json:"code"`

	// HTTP is the HTTP status code to return
	HTTP int `json:"-"`

	// GRPCCode is the gRPC status code
	GRPCCode codes.Code `json:"-"`

	// MessageEN is the English error message
	MessageEN string `json:"message"`

	// MessageZH is the Chinese error message
	MessageZH string `json:"message_zh,omitempty"`

	cause error
}

// New creates a new Errno with the given parameters.
func New(code int, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{
		Code:      code,
		HTTP:      httpStatus,
		GRPCCode:  grpcCode,
		MessageEN: messageEN,
		MessageZH: messageZH,
	}
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

func (e *Errno) clone() *Errno {
	cp := *e
	return &cp
}

// WithCause creates a new Errno with the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	cp := e.clone()
	cp.cause = cause
	return cp
}

// WithMessage creates a new Errno with custom English message.
func (e *Errno) WithMessage(msg string) *Errno {
	cp := e.clone()
	cp.MessageEN = msg
	return cp
}

// WithMessagef creates a new Errno with formatted English message.
func (e *Errno) WithMessagef(format string, args ...any) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message returns the message based on language.
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// HTTPStatus returns the HTTP status code.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns the gRPC status code.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	return codes.Internal
}

// Is matches any Errno carrying the same code, so errors.Is works on
// values derived through WithCause or WithMessage.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// Format implements fmt.Formatter.
func (e *Errno) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "errno %d [HTTP %d, gRPC %s]: %s", e.Code, e.HTTP, e.GRPCCode.String(), e.MessageEN)
			if e.cause != nil {
				_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// FromError converts any error to Errno. An Errno anywhere in the chain is
// returned as is; anything else is wrapped as ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode checks if the error chain carries the given error code.
func IsCode(err error, code int) bool {
	var e *Errno
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the error code from an error, -1 if none.
func GetCode(err error) int {
	var e *Errno
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}
