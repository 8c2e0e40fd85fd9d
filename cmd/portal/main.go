package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/app"
	"github.com/TI02-jp/site-sub001/internal/cache"
	"github.com/TI02-jp/site-sub001/internal/config"
	"github.com/TI02-jp/site-sub001/internal/gateway"
	"github.com/TI02-jp/site-sub001/internal/repository"
	"github.com/TI02-jp/site-sub001/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	meetingRepo := repository.NewMeetingRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool)

	eventCache := cache.NewStore()
	client := gateway.NewClient(gateway.Config{
		FeedURL:    cfg.CalendarFeedURL,
		APIBaseURL: cfg.CalendarAPIBaseURL,
		APIToken:   cfg.CalendarAPIToken,
		Timeout:    cfg.GatewayTimeout,
	}, logger)

	reconcile := service.NewReconcileService(
		meetingRepo,
		userRepo,
		client,
		eventCache,
		cfg.CacheTTL,
		cfg.MaxFetchResults,
		logger,
	)

	warmer := app.NewWarmer(reconcile, cfg.FeedWarmInterval, logger)
	warmer.Start(ctx)
	defer warmer.Stop()

	logger.Info("Scheduling core started",
		zap.String("environment", cfg.Environment),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("gateway_timeout", cfg.GatewayTimeout),
		zap.Int("window_months", cfg.WindowMonths),
		zap.String("timezone", cfg.Location.String()),
	)

	<-ctx.Done()
	logger.Info("Shutting down")
}
