package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	httptransport "github.com/spec-kit/leave-service/internal/api/http"
	"github.com/spec-kit/leave-service/internal/api/http/handlers"
	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/authz"
	"github.com/spec-kit/leave-service/internal/config"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/ledger"
	"github.com/spec-kit/leave-service/internal/notification"
	"github.com/spec-kit/leave-service/internal/observability"
	"github.com/spec-kit/leave-service/internal/persistence"
	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/internal/repository/memory"
	"github.com/spec-kit/leave-service/internal/service"
	"github.com/spec-kit/leave-service/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg.Postgres, logger)
	defer closeStore()

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	sender, closeSender := newSender(cfg.Notification, rdb, logger)
	defer closeSender()

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, sender, logger, cfg.Notification).RegisterHandlers()

	authorizer, err := authz.New(nil)
	if err != nil {
		logger.Fatal("failed to build authorizer", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	directory := service.NewDirectoryService(service.DirectoryDependencies{
		Employees:       store.Employees(),
		Tokens:          tokens,
		BcryptCost:      cfg.Auth.BcryptCost,
		AnnualAllowance: cfg.Leave.AnnualAllowance,
		Logger:          logger,
	})
	if _, err := directory.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdmin); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	leaveService := service.NewLeaveService(service.LeaveDependencies{
		Store:           store,
		Ledger:          ledger.New(logger),
		Authorizer:      authorizer,
		Logger:          logger,
		AnnualAllowance: cfg.Leave.AnnualAllowance,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Duration(cfg.App.RequestTimeoutSeconds)*time.Second)

	checks := map[string]handlers.Check{"store": store.Ping}
	var idempotencyClient redis.Cmdable
	if rdb.Client != nil {
		idempotencyClient = rdb.Client
		checks["redis"] = rdb.Ping
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks, metrics),
		Auth:           handlers.NewAuthHandler(directory),
		Leave:          handlers.NewLeaveHandler(leaveService),
		AuthMiddleware: auth.NewAuthMiddleware(directory),
		Idempotency:    httptransport.Idempotency(idempotencyClient, cfg.HTTP.IdempotencyTTL, logger),
		LoginLimiter: httptransport.RateLimitByIP(httptransport.NewKeyedRateLimiter(
			rate.Limit(cfg.HTTP.LoginRatePerSecond), cfg.HTTP.LoginBurst,
		)),
	})

	outbox := worker.NewOutboxWorker(store.Outbox(), dispatcher, logger, worker.OutboxConfig{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		MaxAttempts:  cfg.Worker.MaxAttempts,
	})
	scheduler, err := worker.NewPurgeJob(store.Outbox(), cfg.Worker.RetentionDuration, logger).Schedule(ctx, cfg.Worker.PurgeSchedule)
	if err != nil {
		logger.Fatal("invalid purge schedule", zap.String("schedule", cfg.Worker.PurgeSchedule), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return outbox.Run(gctx)
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (repository.Store, func()) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not set; using in-memory store")
		return memory.NewStore(), func() {}
	}

	pg, err := persistence.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if cfg.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			pg.Close()
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	return repository.NewPostgresStore(pg.Pool), pg.Close
}

func newSender(cfg config.NotificationConfig, rdb *persistence.Redis, logger *zap.Logger) (notification.Sender, func()) {
	switch cfg.Transport {
	case config.TransportRedis:
		if rdb.Client == nil {
			logger.Fatal("redis transport selected but redis is disabled")
		}
		return notification.NewRedisSender(rdb.Client, cfg.RedisQueue), func() {}
	case config.TransportKafka:
		writer := notification.NewKafkaWriter(cfg.KafkaBrokers)
		return notification.NewKafkaSender(writer, cfg.KafkaTopic), func() { _ = writer.Close() }
	default:
		return notification.NewLogSender(logger), func() {}
	}
}
