package api

import (
	"net/http"

	"support-desk/backend/stats/service"

	"github.com/gin-gonic/gin"
)

// StatsHandler exposes windowed conversation metrics
type StatsHandler struct {
	stats *service.Stats
}

// NewStatsHandler creates a stats handler
func NewStatsHandler(stats *service.Stats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// RegisterRoutes registers the stats route on the given group
func (h *StatsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
}

// GetStats returns metrics for the requested window (default week)
func (h *StatsHandler) GetStats(c *gin.Context) {
	window := c.DefaultQuery("window", service.WindowWeek)

	stats, err := h.stats.WindowStats(c.Request.Context(), window)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
