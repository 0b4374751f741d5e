package errors

import (
	"context"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	aierrors "github.com/hrygo/notesrag/internal/errors"
)

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    aierrors.ErrorCode
		wantMessage string
	}{
		{
			name:        "invalid argument",
			err:         aierrors.InvalidArgument("question is required"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    aierrors.ErrCodeInvalidArgument,
			wantMessage: "question is required",
		},
		{
			name:        "not found",
			err:         aierrors.NotFound("note not found"),
			wantStatus:  http.StatusNotFound,
			wantCode:    aierrors.ErrCodeNotFound,
			wantMessage: "note not found",
		},
		{
			name:        "storage fault hides details",
			err:         pkgerrors.Wrap(pkgerrors.New("pq: relation \"note\" does not exist"), "failed to list notes"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    aierrors.ErrCodeInternal,
			wantMessage: "internal server error",
		},
		{
			name:        "generation unavailable",
			err:         aierrors.GenerationUnavailable("note analysis failed", pkgerrors.New("timeout")),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    aierrors.ErrCodeGenerationUnavailable,
			wantMessage: "Service Unavailable",
		},
		{
			name:        "bare context cancel",
			err:         pkgerrors.Wrap(context.Canceled, "search"),
			wantStatus:  499,
			wantCode:    aierrors.ErrCodeContextCanceled,
			wantMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := ToHTTPError(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.Code)
			body, ok := httpErr.Message.(Response)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Error)
			assert.ErrorIs(t, httpErr, tt.err)
		})
	}
}
