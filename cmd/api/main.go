package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capdev_portal/internal/email"
	"capdev_portal/internal/email/emaillog"
	emailhandler "capdev_portal/internal/email/handler"
	"capdev_portal/internal/events"
	apphttp "capdev_portal/internal/http"
	"capdev_portal/internal/http/router"
	"capdev_portal/internal/notification"
	"capdev_portal/internal/preferences"
	"capdev_portal/internal/scheduler"
	"capdev_portal/internal/webhook"
	"capdev_portal/platform/cache"
	"capdev_portal/platform/config"
	"capdev_portal/platform/db"
	"capdev_portal/platform/logger"
	"capdev_portal/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	redisCache, err := cache.NewRedis(cfg)
	if err != nil {
		log.Error("failed to initialize redis cache", "error", err)
		panic("failed to initialize redis cache: " + err.Error())
	}
	defer func() { _ = redisCache.Close() }()

	emailLogs, err := emaillog.Open(ctx, pool, log)
	if err != nil {
		log.Error("failed to open email log store", "error", err)
		panic("failed to open email log store: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	mailer, provider, err := buildEmailService(cfg, redisCache, emailLogs, val, log)
	if err != nil {
		log.Error("failed to initialize email service", "error", err)
		panic("failed to initialize email service: " + err.Error())
	}

	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		panic("failed to initialize queue client: " + err.Error())
	}
	defer func() { _ = queueClient.Close() }()

	inspector, err := scheduler.NewQueueInspector(cfg)
	if err != nil {
		log.Error("failed to initialize queue inspector", "error", err)
		panic("failed to initialize queue inspector: " + err.Error())
	}
	defer func() { _ = inspector.Close() }()

	health := email.NewHealthChecker(provider, inspector, emailLogs, cfg)

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	preferencesModule := preferences.NewModule(pool, val)

	notificationModule := notification.New(pool, queueClient, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	emailModule := emailhandler.NewModule(mailer, health, val)
	webhookModule := webhook.NewModule(emailLogs, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			preferencesModule,
			notificationModule,
			emailModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, waiting for event handlers")
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
