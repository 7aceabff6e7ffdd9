// internal/handlers/metrics/metrics_handler.go
package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	metricsdom "fedportal-service/internal/domain/metrics"
	"fedportal-service/internal/middleware"
	"fedportal-service/internal/pkg/response"
	metricssvc "fedportal-service/internal/service/metrics"
)

type MetricsHandler struct {
	engine      *metricssvc.Engine
	coordinator *metricssvc.Coordinator
	logger      *zap.Logger
}

func NewMetricsHandler(engine *metricssvc.Engine, coordinator *metricssvc.Coordinator, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		engine:      engine,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Snapshot serves the aggregated metrics for the caller's scope and the
// requested range. Degraded categories are reported inline, never as a
// request failure.
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	rng, err := metricsdom.ParseTimeRange(c.DefaultQuery("range", string(metricsdom.RangeMonth)))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid time range", err)
		return
	}

	eff := middleware.MustGetIdentity(c)
	q := metricsdom.Query{
		Scope:     metricssvc.ScopeFor(eff),
		TimeRange: rng,
	}

	snap, err := h.coordinator.Snapshot(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err, "failed to compute metrics")
		return
	}

	response.Success(c, http.StatusOK, "metrics snapshot", gin.H{
		"snapshot": snap,
		"loading":  h.coordinator.Loading(),
	})
}

// Refresh forces an immediate recompute of the live snapshot, bypassing the
// quiet window.
func (h *MetricsHandler) Refresh(c *gin.Context) {
	rng, err := metricsdom.ParseTimeRange(c.DefaultQuery("range", string(metricsdom.RangeMonth)))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid time range", err)
		return
	}

	h.coordinator.Refresh(rng)
	response.Success(c, http.StatusAccepted, "recompute scheduled", nil)
}

// Activity serves the merged cross-tool activity feed with per-user
// rollups.
func (h *MetricsHandler) Activity(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)

	filter := metricsdom.ActivityFilter{
		UserEmail: c.Query("user"),
		Search:    c.Query("q"),
	}
	if src := c.Query("source"); src != "" {
		switch metricsdom.Category(src) {
		case metricsdom.CategoryDocease, metricsdom.CategorySignease, metricsdom.CategorySignatures:
			filter.Source = metricsdom.Category(src)
		default:
			response.Error(c, http.StatusBadRequest, "invalid source filter", nil)
			return
		}
	}

	feed, err := h.engine.ActivityFeed(c.Request.Context(), metricssvc.ScopeFor(eff), filter)
	if err != nil {
		response.FromError(c, err, "failed to build activity feed")
		return
	}

	response.Success(c, http.StatusOK, "activity feed", feed)
}
