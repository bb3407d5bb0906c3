package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clickpipe/internal/application/factories/infrastructure"
	"clickpipe/internal/config"
	"clickpipe/internal/forward"
	"clickpipe/internal/infrastructure/postgres"
	"clickpipe/internal/ingest"
	"clickpipe/internal/pipeline"
	"clickpipe/internal/pool"
)

const (
	browserSourceName = "browser"
	jsonSourceName    = "json"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	producer := infraFactory.KafkaProducer()
	logger.Info("kafka producer ready", "topic", producer.GetTopic())

	eventRepo := postgres.NewEventRepository(pgPool)

	// Downstream pipelines, shared by both sources. The registration
	// sets are built once here and never mutated.
	pipelines := []forward.Pipeline{
		pipeline.NewKafka(producer),
		pipeline.NewStore(eventRepo),
		pipeline.NewSession(redisClient),
	}
	registry := forward.Registry{
		browserSourceName: forward.New(browserSourceName, pipelines, logger),
		jsonSourceName:    forward.New(jsonSourceName, pipelines, logger),
	}

	processingPool := pool.New(pool.Config{
		Workers:     cfg.Ingest.Workers,
		Capacity:    cfg.Ingest.QueueCapacity,
		EnqueueWait: cfg.Ingest.EnqueueWait,
	}, func(item pool.Item) {
		registry.Dispatch(context.Background(), item.Source, item.Event)
	}, logger)

	browserHandler := ingest.NewBrowserHandler(browserSourceName, cfg.Browser.PartyIDParameter, processingPool, logger)
	jsonHandler := ingest.NewJSONHandler(jsonSourceName, cfg.JSON.PartyIDParameter, cfg.JSON.MaximumBodySize, processingPool, logger)
	recentHandler := ingest.NewRecentEventsHandler(eventRepo, logger)
	router := ingest.NewRouter(browserHandler, cfg.Browser.Prefix, jsonHandler, cfg.JSON.Prefix, recentHandler, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}

	go func() {
		logger.Info("collector starting", "port", cfg.HTTP.Port, "workers", cfg.Ingest.Workers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down collector")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop intake, then drain the partition queues within the bound.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Ingest.ShutdownTimeout)
	defer drainCancel()
	if err := processingPool.Shutdown(drainCtx); err != nil {
		logger.Error("pool drain incomplete", "error", err)
	}

	logger.Info("collector exiting")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
