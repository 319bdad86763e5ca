package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeCorruptTree        = "CORRUPT_TREE"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeCanceled           = "REQUEST_CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is answered when the caller went away before the
// operation finished.
const StatusClientClosedRequest = 499

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewCorruptTreeError reports a structural anomaly found while walking the
// subtree under rootID, such as postID being reachable twice.
func NewCorruptTreeError(rootID, postID string) *AppError {
	return &AppError{
		Code:    CodeCorruptTree,
		Message: fmt.Sprintf("thread %s is corrupt: post %s reached more than once", rootID, postID),
	}
}

func NewStorageUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeStorageUnavailable,
		Message: "Storage unavailable",
		Err:     err,
	}
}

// NewCanceledError reports an operation abandoned because its caller
// cancelled. It is not a storage failure and is not worth retrying.
func NewCanceledError(err error) *AppError {
	return &AppError{
		Code:    CodeCanceled,
		Message: "Request canceled",
		Err:     err,
	}
}

// NewContextError classifies a context error. A missed deadline means the
// store was too slow; a cancellation means the caller left.
func NewContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewStorageUnavailableError(err)
	}
	return NewCanceledError(err)
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code found in err's chain, or "" if none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool           { return ErrorCode(err) == CodeNotFound }
func IsValidation(err error) bool         { return ErrorCode(err) == CodeValidation }
func IsCorruptTree(err error) bool        { return ErrorCode(err) == CodeCorruptTree }
func IsStorageUnavailable(err error) bool { return ErrorCode(err) == CodeStorageUnavailable }
func IsCanceled(err error) bool           { return ErrorCode(err) == CodeCanceled }

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeStorageUnavailable:
		return fiber.StatusServiceUnavailable
	case CodeCanceled:
		return StatusClientClosedRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		// Internal causes stay in the logs.
		if appErr.Err != nil && appErr.Code != CodeInternal && appErr.Code != CodeStorageUnavailable {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
