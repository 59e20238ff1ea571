package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tilepress/tilepress/internal/config"
	"github.com/tilepress/tilepress/internal/handler"
	"github.com/tilepress/tilepress/internal/infra/postgresql"
	"github.com/tilepress/tilepress/internal/infra/postgresql/migrations"
	infraredis "github.com/tilepress/tilepress/internal/infra/redis"
	"github.com/tilepress/tilepress/internal/observability"
	"github.com/tilepress/tilepress/internal/repository"
	"github.com/tilepress/tilepress/internal/service"
	"github.com/tilepress/tilepress/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.UploadRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	projectRepo := repository.NewGormProjectRepo(db)
	batchRepo := repository.NewGormBatchJobRepo(db)

	projectService, err := service.NewProjectService(projectRepo, logger)
	if err != nil {
		logger.Fatal("project service init failed", zap.Error(err))
	}

	batchService, err := service.NewBatchService(batchRepo, projectRepo, projectService, nil, logger)
	if err != nil {
		logger.Fatal("batch service init failed", zap.Error(err))
	}

	executor, err := service.NewExecutor(batchService, cfg.ExecutorQueueSize, logger)
	if err != nil {
		logger.Fatal("executor init failed", zap.Error(err))
	}
	batchService.SetQueue(executor)

	metrics := observability.NewMetrics()
	projectService.SetMetrics(metrics)
	batchService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    cfg.MaxUploadMB * 1024 * 1024,
	})

	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, executor)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterProjectRoutes(app, projectService, limiter); err != nil {
		logger.Fatal("project routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterBatchRoutes(app, batchService, limiter); err != nil {
		logger.Fatal("batch routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("tilepress api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return executor.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped", zap.Error(err))
	}
}
