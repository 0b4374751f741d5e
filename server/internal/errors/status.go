// Package errors maps coded errors onto HTTP responses.
package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/notesrag/internal/errors"
)

// Response is the JSON body of every API error.
type Response struct {
	Code  aierrors.ErrorCode `json:"code"`
	Error string             `json:"error"`
}

// StatusCode returns the HTTP status for an error code.
func StatusCode(code aierrors.ErrorCode) int {
	switch code {
	case aierrors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case aierrors.ErrCodeNotFound:
		return http.StatusNotFound
	case aierrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case aierrors.ErrCodeEmbeddingUnavailable, aierrors.ErrCodeGenerationUnavailable:
		return http.StatusServiceUnavailable
	case aierrors.ErrCodeContextCanceled:
		// nginx's "client closed request".
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError converts err into an echo error. Internal faults get a generic message
// so storage details never reach the client.
func ToHTTPError(err error) *echo.HTTPError {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	code := aierrors.GetCodeFromError(err, aierrors.ErrCodeInternal)
	if code == aierrors.ErrCodeInternal && errors.Is(err, context.Canceled) {
		code = aierrors.ErrCodeContextCanceled
	}
	status := StatusCode(code)

	message := "internal server error"
	var aiErr *aierrors.AIError
	if status < http.StatusInternalServerError && errors.As(err, &aiErr) {
		message = aiErr.Message
	} else if code != aierrors.ErrCodeInternal {
		message = http.StatusText(status)
	}

	return echo.NewHTTPError(status, Response{Code: code, Error: message}).SetInternal(err)
}
