package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode application error code
type ErrorCode int

const (
	// system errors (1000-1999)
	ErrInternal ErrorCode = 1000 + iota
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrTimeout
	ErrRequestFailed
	ErrRateLimited
)

const (
	// domain errors (2000-2999)
	ErrInvalidInput ErrorCode = 2000 + iota
	ErrImageGeneration
	ErrImageStorage
)

// AppError application error
type AppError struct {
	Code    ErrorCode // error code
	Message string    // message shown to the caller
	Err     error     // underlying error
	Status  int       // HTTP status code
}

// Error implements error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPResponse status and body for the caller
func (e *AppError) HTTPResponse() (int, map[string]any) {
	return e.Status, map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
		},
	}
}

// NewInternalError internal server error
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
		Status:  http.StatusInternalServerError,
	}
}

// NewBadRequestError malformed request
func NewBadRequestError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
		Status:  http.StatusBadRequest,
	}
}

// NewUnauthorizedError missing or wrong credentials
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// NewNotFoundError the message names the missing resource
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: message,
		Status:  http.StatusNotFound,
	}
}

// NewRateLimitError too many requests from one client
func NewRateLimitError(rps int) *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Message: fmt.Sprintf("rate limit of %d requests per second exceeded, retry later", rps),
		Status:  http.StatusTooManyRequests,
	}
}

// NewImageGenerationError the external API failed after all attempts
func NewImageGenerationError(attempts int, err error) *AppError {
	message := "image generation failed"
	if attempts > 0 {
		message = fmt.Sprintf("image generation failed after %d attempt(s)", attempts)
	}
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &AppError{
		Code:    ErrImageGeneration,
		Message: message,
		Err:     err,
		Status:  http.StatusInternalServerError,
	}
}

// NewImageStorageError writing the generated file failed
func NewImageStorageError(err error) *AppError {
	return &AppError{
		Code:    ErrImageStorage,
		Message: "failed to store generated image",
		Err:     err,
		Status:  http.StatusInternalServerError,
	}
}
