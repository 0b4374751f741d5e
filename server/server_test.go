package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/hrygo/notesrag/internal/profile"
	v1 "github.com/hrygo/notesrag/server/router/api/v1"
)

func TestServer_Healthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(&profile.Profile{Mode: "dev", Port: 0}, &v1.APIV1Service{}, nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service ready.", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(&profile.Profile{Mode: "prod"}, &v1.APIV1Service{}, nil, logger)
	s.echoServer.GET("/boom", func(echo.Context) error { panic("boom") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(&profile.Profile{Mode: "dev"}, &v1.APIV1Service{}, nil, logger)
	s.Shutdown(context.Background())
}
