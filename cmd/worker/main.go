package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nexttale/internal/config"
	"nexttale/internal/gateway"
	"nexttale/internal/messaging"
	"nexttale/internal/service"
	"nexttale/internal/worker"
	pkgDatabase "nexttale/pkg/database"
	sharedDatabase "nexttale/shared/database"
	"nexttale/shared/interfaces"
	sharedLogger "nexttale/shared/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	metricsPushInterval = 15 * time.Second
	consumerStopTimeout = 60 * time.Second
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("Failed to load worker configuration: %v", err)
	}

	if cfg.Logger.Service == "" {
		cfg.Logger.Service = "nexttale-worker"
	}
	logger, err := sharedLogger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Pre-generation worker starting",
		zap.String("env", cfg.AppEnv),
		zap.String("queue", cfg.RabbitMQ.QueueName),
		zap.Int("prefetch", cfg.RabbitMQ.Prefetch),
		zap.Int("maxAttempts", cfg.MaxAttempts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsPort, logger)
	if cfg.PushGatewayURL != "" {
		pusher, err := worker.NewMetricsPusher(cfg.PushGatewayURL, cfg.InstanceID, logger)
		if err != nil {
			logger.Warn("Metrics push disabled", zap.Error(err))
		} else {
			go pusher.Run(ctx, metricsPushInterval)
		}
	}

	dbPool, err := pkgDatabase.NewPool(ctx, pkgDatabase.Config{
		DSN:             cfg.GetDSN(),
		MaxConns:        int32(cfg.DBMaxConns),
		MaxConnIdleTime: cfg.DBIdleTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	storyRepo := sharedDatabase.NewPgStoryRepository(dbPool, logger)
	nodeRepo := sharedDatabase.NewPgStoryNodeRepository(dbPool, logger)
	choiceRepo := sharedDatabase.NewPgStoryChoiceRepository(dbPool, logger)
	txManager := sharedDatabase.NewPgTransactionManager(dbPool, logger)

	var inFlight interfaces.InFlightSet
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		inFlight = sharedDatabase.NewRedisInFlightSet(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.InFlightTTL, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, pre-generation claims are not shared between workers")
		inFlight = service.NewMemoryInFlightSet()
	}

	storyGen, err := gateway.NewStoryGenerator(cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to initialize story generator", zap.Error(err))
	}
	orchestrator := service.NewGenerationOrchestrator(storyRepo, nodeRepo, choiceRepo, txManager, storyGen, cfg.GenerationTimeout, logger)

	taskHandler := worker.NewTaskHandler(storyRepo, nodeRepo, choiceRepo, orchestrator, inFlight, worker.Config{
		MaxAttempts:    cfg.MaxAttempts,
		BaseRetryDelay: cfg.BaseRetryDelay,
	}, logger)

	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()

	consumer := messaging.NewPregenerationConsumer(rabbitConn, taskHandler, messaging.ConsumerConfig{
		QueueName:    cfg.RabbitMQ.QueueName,
		ConsumerName: cfg.RabbitMQ.ConsumerName,
		Prefetch:     cfg.RabbitMQ.Prefetch,
	}, logger)
	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("Failed to start consumer", zap.Error(err))
	}

	connClosed := rabbitConn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping worker...")
	case amqpErr := <-connClosed:
		logger.Error("RabbitMQ connection closed", zap.Any("error", amqpErr))
	}

	consumer.Stop(consumerStopTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown failed", zap.Error(err))
	}
	logger.Info("Worker stopped")
}

func startMetricsServer(port string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(worker.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Metrics server listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 10
	retryDelay := 3 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
