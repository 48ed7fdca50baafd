// Package errs defines the stable-coded error taxonomy shared by the
// storage engine and the session-recovery proxy.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package errs

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Stable codes returned in the JSON error body as `code`.
const (
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeD1Error              = "D1_ERROR"
	CodeBackendError         = "BACKEND_ERROR"
	CodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	CodeSessionRecoveryFail  = "SESSION_RECOVERY_FAILED"
	CodeInvalidJSON          = "INVALID_JSON"
	CodeInternal             = "INTERNAL_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeCasExhausted         = "CAS_EXHAUSTED"
	CodeBodyTooLarge         = "BODY_TOO_LARGE"
	CodeInvalidMethod        = "INVALID_METHOD"
	CodePreconditionFailed   = "PRECONDITION_FAILED"
	CodeSyncFailed           = "SYNC_FAILED"
)

// Error is the uniform error value propagated across storage/proxy
// boundaries. It carries the HTTP status the proxy should answer with and
// the stable code clients key their retry logic off of.
type Error struct {
	Status  int
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func Wrap(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Message: err.Error(), cause: err}
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, msg)
}

func InvalidToken(msg string) *Error {
	return New(http.StatusUnauthorized, CodeInvalidToken, msg)
}

func CatalogError(err error) *Error {
	return Wrap(http.StatusBadGateway, CodeD1Error, errors.Wrap(err, "catalog request failed"))
}

func BackendError(msg string) *Error {
	return New(http.StatusBadGateway, CodeBackendError, msg)
}

func BackendUnavailable(attempts int) *Error {
	return New(http.StatusServiceUnavailable, CodeBackendUnavailable,
		fmt.Sprintf("backend unavailable: retries exhausted after %d attempts", attempts))
}

func SessionRecoveryFailed(msg string) *Error {
	return New(http.StatusBadGateway, CodeSessionRecoveryFail, msg)
}

func CasExhausted(key string, attempts int) *Error {
	return New(http.StatusServiceUnavailable, CodeCasExhausted,
		fmt.Sprintf("cas exhausted for %q after %d attempts", key, attempts))
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, what+" not found")
}

func InvalidJSON(msg string) *Error {
	return New(http.StatusBadRequest, CodeInvalidJSON, msg)
}

func Internal(err error) *Error {
	return Wrap(http.StatusInternalServerError, CodeInternal, err)
}

func BodyTooLarge(limit int64) *Error {
	return New(http.StatusBadRequest, CodeBodyTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
}

func InvalidMethod(method string) *Error {
	return New(http.StatusBadRequest, CodeInvalidMethod, fmt.Sprintf("unrecognized method %q", method))
}

func PreconditionFailed(key string) *Error {
	return New(http.StatusPreconditionFailed, CodePreconditionFailed, "etag precondition failed for "+key)
}

// As extracts *Error from any error chain, producing an Internal wrapper for
// unrecognized errors so call sites always have a stable code to report.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsNotFound reports whether err (or its cause chain) denotes a missing key.
func IsNotFound(err error) bool {
	e := As(err)
	return e != nil && e.Code == CodeNotFound
}

// IsPreconditionFailed reports an ETag CAS conflict (HTTP 412 equivalent).
func IsPreconditionFailed(err error) bool {
	e := As(err)
	return e != nil && e.Code == CodePreconditionFailed
}
