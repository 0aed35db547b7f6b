package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/request-engine/internal/api/http"
	"github.com/spec-kit/request-engine/internal/api/http/handlers"
	"github.com/spec-kit/request-engine/internal/assignment"
	"github.com/spec-kit/request-engine/internal/auth"
	"github.com/spec-kit/request-engine/internal/config"
	"github.com/spec-kit/request-engine/internal/events"
	"github.com/spec-kit/request-engine/internal/observability"
	"github.com/spec-kit/request-engine/internal/persistence"
	"github.com/spec-kit/request-engine/internal/repository"
	"github.com/spec-kit/request-engine/internal/scoring"
	"github.com/spec-kit/request-engine/internal/service"
	"github.com/spec-kit/request-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	requestRepo := repository.NewRequestRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	workerDir := repository.NewWorkerDirectory(pool)
	meetingDir := repository.NewMeetingDirectory(pool)

	// the round-robin cursor lives in redis so every instance shares it
	var cursors assignment.CursorStore = assignment.NewMemoryCursorStore()
	if redis.Client != nil {
		cursors = assignment.NewRedisCursorStore(redis.Client, "assignment:cursor:")
	}
	registry := assignment.NewRegistry(
		assignment.NewRoundRobin(cursors),
		assignment.NewWorkloadBalanced(),
		assignment.NewSkillBased(),
		assignment.NewTerritoryBased(),
		assignment.NewHybrid(assignment.HybridWeights{
			Skill:     cfg.Assignment.HybridSkill,
			Load:      cfg.Assignment.HybridLoad,
			Territory: cfg.Assignment.HybridTerritory,
		}),
	)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		RequestRepo: requestRepo,
		AuditRepo:   auditRepo,
		Workers:     workerDir,
		Meetings:    meetingDir,
		Strategies:  registry,
		Scorer: scoring.NewLeadScorer(scoring.Weights{
			Budget:       cfg.Scoring.BudgetWeight,
			Source:       cfg.Scoring.SourceWeight,
			Completeness: cfg.Scoring.CompletenessWeight,
		}),
		Dispatcher:      dispatcher,
		Logger:          logger,
		Metrics:         metrics,
		Lifecycle:       cfg.Lifecycle,
		DefaultStrategy: cfg.Assignment.DefaultStrategy,
	})

	eventLog := service.NewEventLogService(dispatcher, logger)
	eventLog.RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Requests:       handlers.NewRequestsHandler(lifecycleService),
		Workers:        handlers.NewWorkersHandler(lifecycleService),
		Sweep:          handlers.NewSweepHandler(lifecycleService),
		AuthMiddleware: authMiddleware,
	})

	if cfg.Lifecycle.SweepEnabled {
		sweeper := worker.NewSweeper(lifecycleService, logger, cfg.Lifecycle)
		go sweeper.Run(ctx)
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
