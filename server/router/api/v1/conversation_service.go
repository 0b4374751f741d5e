package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/ai/memory"
	httperrors "github.com/hrygo/notesrag/server/internal/errors"
	"github.com/hrygo/notesrag/server/observability"
)

type ConversationsResponse struct {
	Conversations []memory.Turn `json:"conversations"`
	Stats         *memory.Stats `json:"stats,omitempty"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
	// Stale is set when the summary could not be refreshed and the previous one is returned.
	Stale bool `json:"stale"`
}

type ContextResponse struct {
	Context map[string]any `json:"context"`
}

// GetConversations handles GET /api/conversations/:user_id?limit=10.
func (s *APIV1Service) GetConversations(c echo.Context) error {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return err
	}
	userID := c.Param("user_id")
	stats := s.Memory.Stats(userID)
	return c.JSON(http.StatusOK, ConversationsResponse{
		Conversations: nonNil(s.Memory.History(userID, memory.DefaultConversationID, limit)),
		Stats:         &stats,
	})
}

// GetConversationHistory handles GET /api/conversations/:user_id/:conversation_id?limit=20.
func (s *APIV1Service) GetConversationHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}
	turns := s.Memory.History(c.Param("user_id"), c.Param("conversation_id"), limit)
	return c.JSON(http.StatusOK, ConversationsResponse{Conversations: nonNil(turns)})
}

func (s *APIV1Service) ClearConversations(c echo.Context) error {
	s.Memory.Clear(c.Param("user_id"))
	return c.JSON(http.StatusOK, MessageResponse{Message: "Conversations cleared successfully"})
}

// GetSummary refreshes the running summary when new turns were recorded since the last one.
// With refresh=false the stored summary is returned as is, flagged stale when turns are pending.
func (s *APIV1Service) GetSummary(c echo.Context) error {
	if c.QueryParam("refresh") == "false" {
		summary, stale := s.Memory.CachedSummary(c.Param("user_id"))
		return c.JSON(http.StatusOK, SummaryResponse{Summary: summary, Stale: stale})
	}

	summary, err := s.Memory.Summary(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		observability.Logger(c).Warn("summary refresh failed, serving previous summary",
			"code", aierrors.ErrCodeGenerationUnavailable,
			"error", err,
		)
		return c.JSON(http.StatusOK, SummaryResponse{Summary: summary, Stale: true})
	}
	return c.JSON(http.StatusOK, SummaryResponse{Summary: summary})
}

func (s *APIV1Service) GetContext(c echo.Context) error {
	return c.JSON(http.StatusOK, ContextResponse{Context: s.Memory.Context(c.Param("user_id"))})
}

// UpdateContext merges the request body into the user's context map.
func (s *APIV1Service) UpdateContext(c echo.Context) error {
	values := map[string]any{}
	if err := c.Bind(&values); err != nil {
		return httperrors.ToHTTPError(aierrors.InvalidArgument("context must be a JSON object"))
	}
	userID := c.Param("user_id")
	s.Memory.UpdateContext(userID, values)
	return c.JSON(http.StatusOK, ContextResponse{Context: s.Memory.Context(userID)})
}

func (s *APIV1Service) ExportConversations(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Memory.Export(c.Param("user_id")))
}

func nonNil(turns []memory.Turn) []memory.Turn {
	if turns == nil {
		return []memory.Turn{}
	}
	return turns
}
