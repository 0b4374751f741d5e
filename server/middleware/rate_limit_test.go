package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	// Keys do not share a bucket.
	assert.True(t, rl.Allow("bob"))
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(0, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("alice")
	now = now.Add(10 * time.Minute)
	rl.Allow("bob")

	assert.Equal(t, 1, rl.Prune(5*time.Minute))
	assert.Len(t, rl.limits, 1)
	assert.Contains(t, rl.limits, "bob")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)

	e := echo.New()
	e.POST("/api/ask", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, rl.Middleware(func(c echo.Context) string { return c.QueryParam("user_id") }))

	serve := func(user string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ask?user_id="+user, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("alice").Code)
	rec := serve("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, http.StatusOK, serve("bob").Code)
}
