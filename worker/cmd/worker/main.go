package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"videoConverter/worker/broker"
	"videoConverter/worker/cache"
	"videoConverter/worker/config"
	"videoConverter/worker/converter"
	"videoConverter/worker/health"
	"videoConverter/worker/metrics"
	"videoConverter/worker/repository"
	"videoConverter/worker/service"
	"videoConverter/worker/storage"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Worker service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to open database pool", zap.Error(err))
	}
	defer pool.Close()

	repo := repository.NewPostgresRepo(pool)
	if err := repo.InitSchema(context.Background()); err != nil {
		logger.Fatal("Failed to initialize schema", zap.Error(err))
	}
	logger.Info("Database initialized")

	m := metrics.New()
	metricsSrv := m.Serve(cfg.MetricsPort, logger)
	defer metricsSrv.Close()

	monitor := health.NewMonitor(
		func() bool { return ctx.Err() != nil },
		m.ActiveJobs,
		logger,
	)
	healthSrv := monitor.Serve(cfg.HealthPort)
	defer healthSrv.Close()

	var statusCache service.StatusCache
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, status cache disabled", zap.Error(err))
	} else {
		statusCache = cache.NewStatusCache(redisClient)
	}
	cancelPing()

	store, err := storage.NewStore(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioSecure,
		logger,
		m,
	)
	if err != nil {
		logger.Fatal("Failed to create object store client", zap.Error(err))
	}

	conv := converter.NewConverter(converter.Options{
		BinaryPath: cfg.FFmpegPath,
		VideoCodec: cfg.FFmpegVideoCodec,
		AudioCodec: cfg.FFmpegAudioCodec,
		Preset:     cfg.FFmpegPreset,
		CRF:        cfg.FFmpegCRF,
	}, logger)

	processor := service.NewProcessor(repo, store, conv, statusCache, logger, m)

	manager := broker.NewManager(cfg.RabbitMQURL(), cfg.RabbitMQQueue, logger)
	defer manager.Close()

	// A worker with no broker access has no useful work to do: retry
	// for a while, then fail fast so the orchestrator restarts us.
	if !connectWithRetry(ctx, manager, cfg, logger) {
		logger.Error("Failed to connect to broker after max retries")
		os.Exit(1)
	}

	consumer := broker.NewConsumer(manager, cfg.RabbitMQQueue, processor.Process, repo, logger, m)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("Consumer stopped with error", zap.Error(err))
	}

	logger.Info("Worker shutdown complete")
}

func connectWithRetry(ctx context.Context, manager *broker.Manager, cfg *config.Config, logger *zap.Logger) bool {
	delay := time.Duration(cfg.BrokerRetryDelaySecs) * time.Second

	for attempt := 1; attempt <= cfg.BrokerRetryAttempts; attempt++ {
		if _, err := manager.Acquire(); err == nil {
			return true
		} else {
			logger.Warn("Broker connection attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.BrokerRetryAttempts),
				zap.Error(err),
			)
		}

		if attempt == cfg.BrokerRetryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	return false
}
