package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"videoConverter/api/broker"
	"videoConverter/api/cache"
	"videoConverter/api/config"
	"videoConverter/api/database"
	"videoConverter/api/handlers"
	"videoConverter/api/middleware"
	"videoConverter/api/repository"
	"videoConverter/api/service"
	"videoConverter/api/storage"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("API service starting", zap.String("port", cfg.Port))

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

	redisCache, err := database.ConnectCache(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisCache.Close()
	statusCache := cache.NewStatusCache(redisCache)

	publisher := broker.NewPublisher(cfg.RabbitMQURL(), cfg.RabbitMQQueue, logger)
	defer publisher.Close()

	presigner, err := storage.NewPresigner(
		cfg.MinioEndpoint,
		cfg.MinioExternalEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioSecure,
	)
	if err != nil {
		logger.Fatal("Failed to create object store client", zap.Error(err))
	}

	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), 10*time.Second)
	if err := presigner.EnsureBucket(bucketCtx); err != nil {
		logger.Warn("Object store bucket not yet available", zap.Error(err))
	}
	cancelBucket()

	jobService := service.NewJobService(repo, statusCache, publisher, presigner, logger)
	jobHandler := handlers.NewJobHandler(jobService, logger)

	healthHandler := handlers.NewHealthHandler(handlers.HealthDeps{
		Broker: func() bool {
			_, err := publisher.QueueDepth()
			return err == nil
		},
		ObjectStore: presigner.BucketExists,
		Database: func(ctx context.Context) bool {
			_, err := repo.CountsByStatus(ctx)
			return err == nil
		},
	})

	router := mux.NewRouter()
	router.Use(middleware.TraceID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))

	jobHandler.Register(router)
	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped unexpectedly", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
