package http

import (
	"fmt"
	"net/http"
)

const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeNotFound    = "ERR_NOT_FOUND"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeUnavailable = "ERR_UNAVAILABLE"
	CodeInternal    = "ERR_INTERNAL"
)

// AppError is an error that knows its HTTP status. Err is logged, never
// serialized.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParam attaches a detail shown to the client.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{}, 1)
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusBadRequest, CodeBadRequest, fmt.Sprintf(format, a...))
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, fmt.Sprintf(format, a...))
}

func TooManyRequestsError(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, CodeRateLimited, message)
}

func ServiceUnavailableError(message string) *AppError {
	return newAppError(http.StatusServiceUnavailable, CodeUnavailable, message)
}

func InternalErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusInternalServerError, CodeInternal, fmt.Sprintf(format, a...))
}
