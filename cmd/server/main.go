package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	assignmodels "support-desk/backend/assignment/models"
	convmodels "support-desk/backend/conversation/models"
	"support-desk/backend/pkg/config"
	"support-desk/backend/pkg/di"
	"support-desk/backend/pkg/logger"
	"support-desk/backend/pkg/router"
	"support-desk/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logConfig.JSON = os.Getenv("LOG_FORMAT") != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	cfg := config.New()

	// Observability: traces to stdout, metrics via Prometheus on :2112
	shutdownTracing := observability.SetupTracing("support-desk", cfg.Server.Env)
	defer shutdownTracing()
	observability.SetupPrometheusMetrics("support-desk", cfg.Server.Env)

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(
		&convmodels.Session{},
		&convmodels.TranscriptMessage{},
		&assignmodels.Worker{},
	); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Create indexes for better query performance
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_transcript_session_ts ON transcript_messages(session_id, timestamp)").Error; err != nil {
		log.LogError(err, "Failed to create transcript index", "index", "idx_transcript_session_ts")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)").Error; err != nil {
		log.LogError(err, "Failed to create session status index", "index", "idx_sessions_status")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)").Error; err != nil {
		log.LogError(err, "Failed to create session started index", "index", "idx_sessions_started_at")
	}

	// Initialize dependency injection container
	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     r.Engine,
		ReadTimeout: cfg.Server.Timeout,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", port, "providers", container.Gateway.Providers())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
