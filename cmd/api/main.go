package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/newsletter-dispatch/internal/audience"
	"github.com/kursadbilgin/newsletter-dispatch/internal/config"
	"github.com/kursadbilgin/newsletter-dispatch/internal/handler"
	"github.com/kursadbilgin/newsletter-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/newsletter-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/newsletter-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/queue"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"github.com/kursadbilgin/newsletter-dispatch/internal/service"
	"github.com/kursadbilgin/newsletter-dispatch/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
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

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewBackendRateLimiter(rdb, cfg.RateLimit)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}
	if cfg.RateLimit == 0 {
		logger.Info("provider rate limiting disabled")
	}

	factory := provider.NewFactory(cfg.Backend, provider.ClientOptions{
		Timeout:  cfg.ProviderTimeout(),
		Limiter:  limiter,
		Observer: metrics,
	}, logger)
	backends := service.BackendResolver(factory.New)

	cacheStore, err := infraredis.NewCacheStore(rdb)
	if err != nil {
		logger.Fatal("audience cache store initialization failed", zap.Error(err))
	}

	audiences, err := audience.NewCache(cacheStore, func() (audience.Source, error) {
		backend, err := factory.New()
		if err != nil {
			return nil, err
		}
		return backend, nil
	}, cfg.CacheTTL(), audience.WithLogger(logger), audience.WithRecorder(metrics))
	if err != nil {
		logger.Fatal("audience cache initialization failed", zap.Error(err))
	}

	pageRepo := repository.NewGormPageRepo(db)
	recipientsRepo := repository.NewGormRecipientsRepo(db)
	auditRepo := repository.NewGormAuditLogRepo(db)

	sinks := []service.AuditSink{service.NewRepositoryAuditSink(auditRepo)}
	var readiness []handler.ReadinessCheck

	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer rabbit.Close()

		publisher := queue.NewRabbitMQPublisher(rabbit)
		sinks = append(sinks, queue.NewAuditSink(publisher))
		readiness = append(readiness, handler.ReadinessCheck{
			Name: "rabbitmq",
			Check: func(context.Context) error {
				if !rabbit.IsConnected() {
					return errors.New("rabbitmq is not connected")
				}
				return nil
			},
		})
	}

	auditLogger := service.NewAuditLogger(logger, metrics, sinks...)

	pageService, err := service.NewPageService(pageRepo, recipientsRepo, logger)
	if err != nil {
		logger.Fatal("page service initialization failed", zap.Error(err))
	}

	recipientsService, err := service.NewRecipientsService(recipientsRepo, backends, audiences, logger)
	if err != nil {
		logger.Fatal("recipients service initialization failed", zap.Error(err))
	}

	campaignService, err := service.NewCampaignService(
		pageRepo,
		recipientsRepo,
		auditRepo,
		auditLogger,
		backends,
		audiences,
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("campaign service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "newsletter-dispatch",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(transport.RequestID())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, readiness...)
	if err := handler.RegisterAudienceRoutes(app, audiences); err != nil {
		logger.Fatal("audience routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterRecipientsRoutes(app, recipientsService); err != nil {
		logger.Fatal("recipients routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterCampaignRoutes(app, pageService, campaignService); err != nil {
		logger.Fatal("campaign routes registration failed", zap.Error(err))
	}

	if _, err := factory.New(); err != nil {
		logger.Warn("campaign backend is not configured; campaign actions will fail", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("newsletter-dispatch api started",
		zap.Int("port", cfg.APIPort),
		zap.String("backend", cfg.Backend.Name),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("api server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	logger.Info("newsletter-dispatch api stopped")
}
