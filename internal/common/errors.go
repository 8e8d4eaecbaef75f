package common

import (
	"errors"
	"net/http"
)

// Error codes shared by every pricing-engine endpoint. They follow the
// engine's failure taxonomy: business-rule violations are recoverable by the
// caller and map to 4xx, storage failures stay generic 5xx.
const (
	CodeValidation          = "VALIDATION"
	CodeNotFound            = "NOT_FOUND"
	CodeState               = "STATE"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeThreshold           = "THRESHOLD"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// StatusForCode maps a taxonomy code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeState:
		return http.StatusConflict
	case CodeInsufficientBalance, CodeThreshold:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err using the canonical error body. AppErrors carry
// their own code and status; anything else is treated as an unexpected
// storage-layer failure the caller may retry.
func WriteError(w http.ResponseWriter, err error) {
	var app *AppError
	if errors.As(err, &app) {
		status := app.HTTPStatus
		if status == 0 {
			status = StatusForCode(app.Code)
		}
		JSONError(w, status, app.Code, app.Message, app.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "something went wrong, please try again", nil)
}
