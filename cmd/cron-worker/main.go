package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairwaygames/clubhouse-backend/internal/cron"
	"github.com/fairwaygames/clubhouse-backend/internal/ingestion"
	"github.com/fairwaygames/clubhouse-backend/internal/lifecycle"
	"github.com/fairwaygames/clubhouse-backend/pkg/config"
	"github.com/fairwaygames/clubhouse-backend/pkg/db"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
	"github.com/fairwaygames/clubhouse-backend/pkg/metrics"
	"github.com/fairwaygames/clubhouse-backend/pkg/migrate"
	"github.com/fairwaygames/clubhouse-backend/pkg/provider"
	"github.com/fairwaygames/clubhouse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	providerClient, err := provider.NewClient(cfg.Provider)
	if err != nil {
		logg.Error(ctx, "failed to build provider client", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	ingestionMetrics := metrics.NewIngestionMetrics(prometheus.DefaultRegisterer)

	lifecycleService, err := lifecycle.NewService(lifecycle.ServiceParams{
		Repo:   lifecycle.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build lifecycle service", err)
		os.Exit(1)
	}

	ingestionRepo := ingestion.NewRepository(dbClient.DB())
	ingestionService, err := ingestion.NewService(ingestion.ServiceParams{
		Repo:     ingestionRepo,
		DB:       dbClient,
		Provider: providerClient,
		Logger:   logg,
		Metrics:  ingestionMetrics,
		LeagueID: cfg.Provider.LeagueID,
	})
	if err != nil {
		logg.Error(ctx, "failed to build ingestion service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewLifecycleSweepJob(cron.LifecycleSweepJobParams{
		Logger:    logg,
		Lifecycle: lifecycleService,
		BatchSize: cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to build lifecycle sweep job", err)
		os.Exit(1)
	}
	pollJob, err := cron.NewIngestionPollJob(cron.IngestionPollJobParams{
		Logger:    logg,
		Ingestion: ingestionService,
		Lister:    ingestionRepo,
	})
	if err != nil {
		logg.Error(ctx, "failed to build ingestion poll job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), 0)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	// Sweep first so a contest that just went LIVE is polled in the same cycle.
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, pollJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return env
}
