package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/config"
	"github.com/clipdeck/kick-clips-go/internal/db"
	"github.com/clipdeck/kick-clips-go/internal/db/migrations"
	"github.com/clipdeck/kick-clips-go/internal/download"
	"github.com/clipdeck/kick-clips-go/internal/events"
	"github.com/clipdeck/kick-clips-go/internal/feed"
	"github.com/clipdeck/kick-clips-go/internal/handler"
	"github.com/clipdeck/kick-clips-go/internal/kick"
	"github.com/clipdeck/kick-clips-go/internal/metrics"
	"github.com/clipdeck/kick-clips-go/internal/recent"
	"github.com/clipdeck/kick-clips-go/internal/repository"
	"github.com/clipdeck/kick-clips-go/internal/transfer"
	"github.com/clipdeck/kick-clips-go/internal/validation"
	"github.com/clipdeck/kick-clips-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const eventBufferSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Log.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	dbConfig := db.FromAppConfig(cfg.Database)
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(dbConfig.URL()); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(pool)

	downloads := repository.NewDownloadRepository(pool)

	// Recent channels are optional; the feed works without Redis.
	var recentStore *recent.Store
	redisClient, err := recent.NewClient(cfg.Redis)
	if err != nil {
		logger.Log.Warn("invalid redis configuration, recent channels disabled", zap.Error(err))
	} else {
		defer func() { _ = redisClient.Close() }()
		recentStore = recent.NewStore(redisClient, cfg.Redis.RecentKey, cfg.Redis.RecentLimit)
		if err := recentStore.Ping(ctx); err != nil {
			logger.Log.Warn("redis unreachable, recent channels may be unavailable", zap.Error(err))
		}
	}

	gateway := kick.NewClient(cfg.Kick.BaseURL, cfg.Kick.UserAgent, cfg.Kick.Timeout, nil, logger.Named("kick"))
	feedEngine := feed.NewEngine(gateway,
		feed.WithFailureThreshold(cfg.Feed.FailureThreshold),
		feed.WithLogger(logger.Named("feed")),
		feed.WithMetrics(mt),
	)

	executor := transfer.NewExecutor(
		cfg.Downloads.MaxParallel,
		cfg.Downloads.ProgressInterval,
		cfg.Kick.UserAgent,
		nil,
		logger.Named("transfer"),
	)
	downloadDir := cfg.Downloads.Dir
	manager := download.NewManager(executor,
		download.WithLogger(logger.Named("download")),
		download.WithMetrics(mt),
		download.WithStore(downloads),
		download.WithFileRemover(executor),
		download.WithDestination(func(clipID string) string {
			return transfer.DestinationFor(downloadDir, clipID)
		}),
	)
	if err := manager.Load(ctx); err != nil {
		return err
	}

	var publisherHealth handler.HealthChecker
	if cfg.RabbitMQ.Enabled {
		publisher, err := events.NewPublisher(&cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("initialize event publisher: %w", err)
		}
		defer func() { _ = publisher.Close() }()
		publisherHealth = publisher

		relay := events.NewRelay(publisher, eventBufferSize, logger.Named("events"))
		manager.Subscribe(relay.Handle)
		go relay.Run(ctx)
	}

	var recentChannels handler.RecentChannels
	var cachePinger handler.Pinger
	if recentStore != nil {
		recentChannels = recentStore
		cachePinger = recentStore
	}

	gin.SetMode(gin.ReleaseMode)
	validator := validation.New(validation.DefaultMaxBatchSize)
	router := handler.NewRouter(handler.RouterConfig{
		Feed:      handler.NewFeedHandler(feedEngine, recentChannels, validator),
		Downloads: handler.NewDownloadHandler(manager, feedEngine, validator),
		Health:    handler.NewHealthHandler(downloads, cachePinger, publisherHealth),
		Gatherer:  reg,
		Logger:    logger.Named("http"),
		APIKeys:   cfg.Server.APIKeys,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("downloadDir", downloadDir),
			zap.Bool("events", cfg.RabbitMQ.Enabled),
		)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
		if err := server.Close(); err != nil {
			logger.Log.Error("failed to close server", zap.Error(err))
		}
	}

	// Cancel in-flight transfers; their partial files are removed by the executor.
	manager.Close()
	executor.Wait()

	logger.Log.Info("server stopped gracefully")
	return nil
}
