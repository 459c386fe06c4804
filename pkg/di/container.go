package di

import (
	"context"
	"fmt"

	assignrepo "support-desk/backend/assignment/repository"
	assignservice "support-desk/backend/assignment/service"
	convrepo "support-desk/backend/conversation/repository"
	convservice "support-desk/backend/conversation/service"
	"support-desk/backend/llm"
	"support-desk/backend/pkg/config"
	"support-desk/backend/pkg/logger"
	"support-desk/backend/pkg/secrets"
	sharedredis "support-desk/backend/shared/redis"
	statsservice "support-desk/backend/stats/service"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application. It is built once
// in main and passed by reference; no package carries service singletons.
type Container struct {
	DB           *gorm.DB
	Config       *config.Config
	Logger       *logger.Logger
	Redis        *sharedredis.Client
	Gateway      *llm.Gateway
	SessionRepo  convrepo.SessionRepository
	WorkerRepo   assignrepo.WorkerRepository
	Engine       *assignservice.Engine
	Orchestrator *convservice.Orchestrator
	Stats        *statsservice.Stats
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	sec, err := secrets.Default(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}

	adapters := llm.BuildAdapters(context.Background(), cfg, sec, log)
	gateway := llm.NewGateway(adapters, llm.GatewayConfig{CallTimeout: cfg.Chat.CallTimeout}, log)
	if len(adapters) == 0 {
		log.Warn("no completion provider enabled; conversations will fail open to human agents")
	}

	sessionRepo := convrepo.NewGormSessionRepository(db)
	workerRepo := assignrepo.NewGormWorkerRepository(db)

	engine := assignservice.NewEngine(workerRepo, sessionRepo, log)
	orchestrator := convservice.NewOrchestrator(sessionRepo, gateway, engine, convservice.OrchestratorConfig{
		ContextWindow: cfg.Chat.ContextWindow,
		MaxTokens:     cfg.Chat.MaxTokens,
		Temperature:   cfg.Chat.Temperature,
	}, log)

	var redisClient *sharedredis.Client
	var statsCache statsservice.Cache
	if cfg.Cache.Enabled {
		redisClient = sharedredis.NewClient(cfg.Cache.Addr)
		statsCache = redisClient
	}
	stats := statsservice.NewStats(sessionRepo, statsCache, cfg.Cache.StatsTTL, log)

	return &Container{
		DB:           db,
		Config:       cfg,
		Logger:       log,
		Redis:        redisClient,
		Gateway:      gateway,
		SessionRepo:  sessionRepo,
		WorkerRepo:   workerRepo,
		Engine:       engine,
		Orchestrator: orchestrator,
		Stats:        stats,
	}, nil
}
