package router

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	healthHandler := func(c *gin.Context) {
		r.Health.RunChecks()

		status := "ok"
		httpStatus := 200
		if !r.Health.IsSystemHealthy() {
			status = "unhealthy"
			httpStatus = 503
		}

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(httpStatus, gin.H{
			"status":         status,
			"env":            r.Config.Server.Env,
			"timestamp":      time.Now().Format(time.RFC3339),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"components":     r.Health.GetStatus(),
			"providers":      r.Container.Gateway.Providers(),
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	}

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/health", healthHandler)
}
