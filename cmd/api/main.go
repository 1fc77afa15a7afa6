package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairwaygames/clubhouse-backend/api/routes"
	"github.com/fairwaygames/clubhouse-backend/internal/discovery"
	"github.com/fairwaygames/clubhouse-backend/internal/entries"
	"github.com/fairwaygames/clubhouse-backend/internal/ingestion"
	"github.com/fairwaygames/clubhouse-backend/internal/lifecycle"
	"github.com/fairwaygames/clubhouse-backend/internal/settlement"
	"github.com/fairwaygames/clubhouse-backend/pkg/config"
	"github.com/fairwaygames/clubhouse-backend/pkg/db"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
	"github.com/fairwaygames/clubhouse-backend/pkg/metrics"
	"github.com/fairwaygames/clubhouse-backend/pkg/migrate"
	"github.com/fairwaygames/clubhouse-backend/pkg/provider"
	"github.com/fairwaygames/clubhouse-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	ingestionMetrics := metrics.NewIngestionMetrics(registry)

	entriesService, err := entries.NewService(entries.ServiceParams{
		Repo:   entries.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Cache:  redisClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build entries service", err)
		os.Exit(1)
	}

	discoveryService, err := discovery.NewService(discovery.ServiceParams{
		Repo:                 discovery.NewRepository(dbClient.DB()),
		DB:                   dbClient,
		Logger:               logg,
		Invalidator:          entriesService,
		HorizonDays:          cfg.Discovery.HorizonDays,
		DefaultEntryFeeCents: cfg.Discovery.DefaultEntryFeeCents,
	})
	if err != nil {
		logg.Error(ctx, "failed to build discovery service", err)
		os.Exit(1)
	}

	ingestionService, err := ingestion.NewService(ingestion.ServiceParams{
		Repo:     ingestion.NewRepository(dbClient.DB()),
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

	lifecycleService, err := lifecycle.NewService(lifecycle.ServiceParams{
		Repo:   lifecycle.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build lifecycle service", err)
		os.Exit(1)
	}

	settlementEngine, err := settlement.NewEngine(settlement.EngineParams{
		Repo:    settlement.NewRepository(dbClient.DB()),
		DB:      dbClient,
		Logger:  logg,
		RakeBps: cfg.Settlement.RakeBps,
	})
	if err != nil {
		logg.Error(ctx, "failed to build settlement engine", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Metrics:    registry,
		Discovery:  discoveryService,
		Ingestion:  ingestionService,
		Lifecycle:  lifecycleService,
		Settlement: settlementEngine,
		Entries:    entriesService,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logCtx := logg.WithFields(runCtx, map[string]any{
			"env":  cfg.App.Env,
			"port": cfg.App.Port,
		})
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			stop()
		}
	}()

	<-runCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
