package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = echo.HeaderXRequestID

const (
	LogFieldRequestID = "request_id"
	LogFieldUserID    = "user_id"
	// LogFieldOperation is the matched route.
	LogFieldOperation = "operation"
	LogFieldDuration  = "duration_ms"
	LogFieldStatus    = "status"
)

// RequestContext identifies one API request. Logger already carries its id, user and operation.
type RequestContext struct {
	RequestID string
	UserID    string
	Operation string
	StartTime time.Time
	Logger    *slog.Logger
}

func newRequestContext(logger *slog.Logger, requestID, operation, userID string) *RequestContext {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return &RequestContext{
		RequestID: requestID,
		UserID:    userID,
		Operation: operation,
		StartTime: time.Now(),
		Logger: logger.With(
			slog.String(LogFieldRequestID, requestID),
			slog.String(LogFieldUserID, userID),
			slog.String(LogFieldOperation, operation),
		),
	}
}

type ctxKey struct{}

// WithRequestContext adds the request context to the context.
func WithRequestContext(ctx context.Context, reqCtx *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, reqCtx)
}

// FromContext extracts the request context from the context.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	reqCtx, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return reqCtx, ok
}

// RequestLogger attaches a RequestContext to every request and logs its completion.
// A request id sent by the client is reused, otherwise a new one is generated.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			userID := c.Param("user_id")
			if userID == "" {
				userID = c.QueryParam("user_id")
			}

			reqCtx := newRequestContext(logger, req.Header.Get(HeaderRequestID), c.Path(), userID)
			c.Response().Header().Set(HeaderRequestID, reqCtx.RequestID)
			ctx := WithRequestContext(req.Context(), reqCtx)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let echo write the error response so the logged status is the real one.
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.Int(LogFieldStatus, status),
				slog.Int64(LogFieldDuration, time.Since(reqCtx.StartTime).Milliseconds()),
			}
			level, msg := slog.LevelDebug, "request served"
			switch {
			case status >= 500:
				level, msg = slog.LevelError, "request failed"
				if err != nil {
					attrs = append(attrs, slog.String("error", err.Error()))
				}
			case status >= 400:
				level, msg = slog.LevelInfo, "request rejected"
			}
			reqCtx.Logger.LogAttrs(ctx, level, msg, attrs...)
			return nil
		}
	}
}

// Logger returns the request-scoped logger of c, or the default logger outside a request.
func Logger(c echo.Context) *slog.Logger {
	if reqCtx, ok := FromContext(c.Request().Context()); ok {
		return reqCtx.Logger
	}
	return slog.Default()
}
