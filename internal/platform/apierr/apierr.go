package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindTimeout      Kind = "timeout"
	KindFatal        Kind = "fatal"
	KindRetryable    Kind = "retryable"
	KindInternal     Kind = "internal"
)

var kindStatus = map[Kind]int{
	KindBadRequest:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindTimeout:      http.StatusGatewayTimeout,
	KindFatal:        http.StatusInternalServerError,
	KindRetryable:    http.StatusServiceUnavailable,
	KindInternal:     http.StatusInternalServerError,
}

type Error struct {
	Kind   Kind
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Kind: kindForStatus(status), Status: status, Code: code, Err: err}
}

// Of builds an error of the given kind; code defaults to the kind name.
func Of(kind Kind, code string, err error) *Error {
	if code == "" {
		code = string(kind)
	}
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Status: status, Code: code, Err: err}
}

func BadRequest(code, msg string, args ...any) *Error {
	return Of(KindBadRequest, code, fmt.Errorf(msg, args...))
}

func Unauthorized(msg string, args ...any) *Error {
	return Of(KindUnauthorized, "", fmt.Errorf(msg, args...))
}

func Forbidden(msg string, args ...any) *Error {
	return Of(KindForbidden, "", fmt.Errorf(msg, args...))
}

func NotFound(code, msg string, args ...any) *Error {
	return Of(KindNotFound, code, fmt.Errorf(msg, args...))
}

func Conflict(code, msg string, args ...any) *Error {
	return Of(KindConflict, code, fmt.Errorf(msg, args...))
}

func Timeout(msg string, args ...any) *Error {
	return Of(KindTimeout, "", fmt.Errorf(msg, args...))
}

func Fatal(err error) *Error {
	return Of(KindFatal, "", err)
}

func Retryable(err error) *Error {
	return Of(KindRetryable, "", err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

func IsFatal(err error) bool     { return IsKind(err, KindFatal) }
func IsRetryable(err error) bool { return IsKind(err, KindRetryable) }

// StatusOf maps err to an HTTP status.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if e.Status != 0 {
			return e.Status
		}
		if s, ok := kindStatus[e.Kind]; ok {
			return s
		}
	}
	return http.StatusInternalServerError
}

func kindForStatus(status int) Kind {
	for k, s := range kindStatus {
		if s == status && k != KindInternal && k != KindFatal {
			return k
		}
	}
	return KindInternal
}
