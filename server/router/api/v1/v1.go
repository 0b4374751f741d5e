package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/internal/profile"
	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/memory"
	"github.com/hrygo/notesrag/plugin/ai/rag"
	httperrors "github.com/hrygo/notesrag/server/internal/errors"
	"github.com/hrygo/notesrag/server/observability"
	ratelimit "github.com/hrygo/notesrag/server/middleware"
	"github.com/hrygo/notesrag/server/service/note"
)

// APIV1Service serves the JSON API.
type APIV1Service struct {
	Profile     *profile.Profile
	NoteService *note.Service
	RAGService  *rag.Service
	Memory      *memory.Manager
	LLMService  ai.LLMService
	Embedding   ai.EmbeddingService
	Metrics     *observability.Metrics
	RateLimiter *ratelimit.RateLimiter
}

// RegisterRoutes mounts every endpoint on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)

	api := e.Group("/api", middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	api.GET("/notes", s.ListNotes)
	api.POST("/notes", s.CreateNote)
	api.GET("/notes/:id", s.GetNote)
	api.PUT("/notes/:id", s.UpdateNote)
	api.DELETE("/notes/:id", s.DeleteNote)
	api.POST("/notes/:id/analyze", s.AnalyzeNote)

	var askLimit []echo.MiddlewareFunc
	if s.RateLimiter != nil {
		askLimit = append(askLimit, s.RateLimiter.Middleware(askUserID))
	}
	api.POST("/ask", s.Ask, askLimit...)

	api.GET("/conversations/:user_id", s.GetConversations)
	api.GET("/conversations/:user_id/summary", s.GetSummary)
	api.GET("/conversations/:user_id/context", s.GetContext)
	api.PUT("/conversations/:user_id/context", s.UpdateContext)
	api.GET("/conversations/:user_id/export", s.ExportConversations)
	api.POST("/conversations/:user_id/clear", s.ClearConversations)
	api.GET("/conversations/:user_id/:conversation_id", s.GetConversationHistory)

	api.GET("/llm/status", s.GetLLMStatus)
	api.GET("/metrics", s.GetMetrics)
}

// MessageResponse acknowledges a mutation without a body of its own.
type MessageResponse struct {
	Message string `json:"message"`
}

func queryInt(c echo.Context, name string, defaultValue int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, httperrors.ToHTTPError(aierrors.InvalidArgument(name + " must be an integer"))
	}
	return v, nil
}

func askUserID(c echo.Context) string {
	if userID := c.QueryParam("user_id"); userID != "" {
		return userID
	}
	return rag.DefaultUserID
}
