package router

import (
	"context"
	"time"

	assignapi "support-desk/backend/assignment/api"
	convapi "support-desk/backend/conversation/api"
	"support-desk/backend/pkg/config"
	"support-desk/backend/pkg/di"
	"support-desk/backend/pkg/errors"
	"support-desk/backend/pkg/health"
	"support-desk/backend/pkg/logger"
	"support-desk/backend/pkg/middleware"
	statsapi "support-desk/backend/stats/api"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Health    *health.Checker
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	// Use the container's logger
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("failed to set trusted proxies", "error", err)
	}

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Tag every request before handlers run
	engine.Use(middleware.RequestIDMiddleware())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	// Apply rate limiting to all routes
	rateLimiterOpts := middleware.DefaultRateLimiterOptions()
	rateLimiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	rateLimiterOpts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(container.Logger, rateLimiterOpts)
	engine.Use(rateLimiter.Middleware())

	checker := health.NewChecker(container.Logger, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		return container.DB.Exec("SELECT 1").Error
	})
	if container.Redis != nil {
		checker.RegisterCacheCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return container.Redis.Ping(ctx)
		})
	}
	checker.Start()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Health:    checker,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	r.setupHealthRoutes()

	sessionHandler := convapi.NewSessionHandler(r.Container.Orchestrator)
	workerHandler := assignapi.NewWorkerHandler(r.Container.Engine, r.Config.Assignment.DefaultMaxConcurrent)
	statsHandler := statsapi.NewStatsHandler(r.Container.Stats)

	v1 := r.Engine.Group("/api/v1")
	{
		sessionHandler.RegisterRoutes(v1)
		workerHandler.RegisterRoutes(v1)
		statsHandler.RegisterRoutes(v1)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
