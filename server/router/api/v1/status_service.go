package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/timeout"
	"github.com/hrygo/notesrag/server/observability"
)

type LLMStatusResponse struct {
	Healthy   bool         `json:"healthy"`
	ModelInfo ai.ModelInfo `json:"model_info"`
}

type MetricsResponse struct {
	*observability.MetricsSnapshot
	SuccessRate float64 `json:"success_rate"`
	Users       int     `json:"active_users"`
}

// GetLLMStatus reports whether the model provider is reachable and what it serves.
func (s *APIV1Service) GetLLMStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.ProbeTimeout)
	defer cancel()

	info := s.LLMService.ModelInfo(ctx)
	if s.Embedding != nil {
		info.EmbeddingModel = s.Embedding.Model()
		info.EmbeddingDimension = s.Embedding.Dimensions()
	}
	return c.JSON(http.StatusOK, LLMStatusResponse{
		Healthy:   info.Error == "",
		ModelInfo: info,
	})
}

func (s *APIV1Service) GetMetrics(c echo.Context) error {
	snapshot := s.Metrics.Snapshot()
	return c.JSON(http.StatusOK, MetricsResponse{
		MetricsSnapshot: snapshot,
		SuccessRate:     snapshot.SuccessRate(),
		Users:           s.Memory.Users(),
	})
}

func (*APIV1Service) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "Service ready.")
}
