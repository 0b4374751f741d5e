package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for notes and RAG operations.
type ErrorCode string

const (
	// ErrCodeEmbeddingUnavailable indicates the embedding capability failed or is unreachable.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrCodeGenerationUnavailable indicates the generation capability failed or returned no text.
	ErrCodeGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	// ErrCodeVectorStoreInconsistent indicates a live note without a current vector.
	ErrCodeVectorStoreInconsistent ErrorCode = "VECTOR_STORE_INCONSISTENT"
	// ErrCodeConfigurationMismatch indicates a fatal startup configuration error.
	ErrCodeConfigurationMismatch ErrorCode = "CONFIGURATION_MISMATCH"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeInternal indicates an unexpected fault.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// AIError represents a structured, coded error.
type AIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value any) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *AIError) GetCode() ErrorCode {
	return e.Code
}

// EmbeddingUnavailable creates an embedding unavailable error.
func EmbeddingUnavailable(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeEmbeddingUnavailable, Message: msg, Cause: cause}
}

// GenerationUnavailable creates a generation unavailable error.
func GenerationUnavailable(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeGenerationUnavailable, Message: msg, Cause: cause}
}

// VectorStoreInconsistent creates a vector store inconsistency error.
func VectorStoreInconsistent(msg string) *AIError {
	return &AIError{Code: ErrCodeVectorStoreInconsistent, Message: msg}
}

// ConfigurationMismatch creates a configuration mismatch error.
func ConfigurationMismatch(msg string) *AIError {
	return &AIError{Code: ErrCodeConfigurationMismatch, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *AIError {
	return &AIError{Code: ErrCodeNotFound, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *AIError {
	return &AIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *AIError {
	return &AIError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}
