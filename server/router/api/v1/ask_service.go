package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	httperrors "github.com/hrygo/notesrag/server/internal/errors"
	"github.com/hrygo/notesrag/server/observability"
)

type AskRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /api/ask?user_id=default.
// Embedding and generation outages still answer 200 with a degraded answer.
func (s *APIV1Service) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return httperrors.ToHTTPError(aierrors.InvalidArgument("invalid request body"))
	}

	answer, err := s.RAGService.Answer(c.Request().Context(), req.Question, askUserID(c))
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.RecordFailure()
		}
		if !aierrors.IsCode(err, aierrors.ErrCodeInvalidArgument) {
			observability.Logger(c).Error("ask failed", "error", err)
		}
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, answer)
}
