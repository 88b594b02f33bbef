package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in the response envelope.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeInternal    = "ERR_INTERNAL"
)

// AppError is an error with the HTTP status and machine-readable code it maps to.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithField names the request field at fault.
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// UnprocessableError creates a 422 error for well-formed input the engine cannot process.
func UnprocessableError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusUnprocessableEntity)
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

// InternalError creates a 500 error. The wrapped error is logged, never serialized.
func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}
