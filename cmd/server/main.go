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
	"nexttale/internal/handler"
	"nexttale/internal/messaging"
	"nexttale/internal/service"
	"nexttale/internal/storage"
	pkgDatabase "nexttale/pkg/database"
	"nexttale/pkg/migration"
	"nexttale/shared/authutils"
	sharedDatabase "nexttale/shared/database"
	"nexttale/shared/interfaces"
	sharedLogger "nexttale/shared/logger"
	sharedMiddleware "nexttale/shared/middleware"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Service:     "nexttale-server",
		Development: cfg.LogDevelopment,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := pkgDatabase.NewPool(ctx, pkgDatabase.Config{
		DSN:             cfg.GetDSN(),
		MaxConns:        int32(cfg.DBMaxConns),
		MaxConnIdleTime: cfg.DBIdleTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.RunMigrations {
		if err := runMigrations(ctx, dbPool, logger); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	storyRepo := sharedDatabase.NewPgStoryRepository(dbPool, logger)
	nodeRepo := sharedDatabase.NewPgStoryNodeRepository(dbPool, logger)
	choiceRepo := sharedDatabase.NewPgStoryChoiceRepository(dbPool, logger)
	progressRepo := sharedDatabase.NewPgReaderProgressRepository(dbPool, logger)
	txManager := sharedDatabase.NewPgTransactionManager(dbPool, logger)

	inFlight, closeRedis := setupInFlightSet(ctx, cfg.Redis, logger)
	defer closeRedis()

	var assetStore interfaces.AssetStore
	if cfg.MinIO.Enabled() {
		store, err := storage.NewMinioAssetStore(ctx, cfg.MinIO, logger)
		if err != nil {
			logger.Fatal("Failed to initialize asset store", zap.Error(err))
		}
		assetStore = store
	}

	storyGen, err := gateway.NewStoryGenerator(cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to initialize story generator", zap.Error(err))
	}
	imageGen, err := gateway.NewImageGenerator(cfg.AI, assetStore, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image generator", zap.Error(err))
	}
	videoGen := gateway.NewVideoGenerator(cfg.AI, logger)

	orchestrator := service.NewGenerationOrchestrator(storyRepo, nodeRepo, choiceRepo, txManager, storyGen, cfg.GenerationTimeout, logger)
	poller := service.NewResolutionPoller(nodeRepo, cfg.PollInterval, cfg.PollTimeout, logger)
	filler := service.NewAssetFiller(nodeRepo, storyRepo, imageGen, videoGen, inFlight, logger)

	var publisher interfaces.PregenerationPublisher
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbitConn.Close()
		ch, err := rabbitConn.Channel()
		if err != nil {
			logger.Fatal("Failed to open RabbitMQ channel", zap.Error(err))
		}
		p, err := messaging.NewPregenerationPublisher(ch, cfg.PregenerationQueue, logger)
		if err != nil {
			logger.Fatal("Failed to create pre-generation publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Info("RABBITMQ_URL not set, server-side pre-generation is disabled")
	}

	sessions := service.NewSessionManager(storyRepo, nodeRepo, choiceRepo, progressRepo, orchestrator, poller, filler, publisher,
		service.SessionConfig{
			ChapterPoints:     cfg.ChapterPoints,
			EndingBonusPoints: cfg.EndingBonusPoints,
			IdleTTL:           cfg.SessionIdleTTL,
		}, logger)
	go sessions.RunJanitor(ctx)

	changeFeed := sharedDatabase.NewPgChangeFeed(dbPool, logger)
	go changeFeed.Run(ctx)

	verifier, err := setupVerifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(sharedMiddleware.EchoZapLogger(logger, "/health", "/metrics"))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/health", func(c echo.Context) error {
		pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := dbPool.Ping(pingCtx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	sessionHandler := handler.NewSessionHandler(sessions, changeFeed, cfg.AllowedOrigins, logger)
	sessionHandler.RegisterRoutes(e,
		sharedMiddleware.EchoAuthMiddleware(verifier, logger, false),
		sharedMiddleware.EchoAuthMiddleware(verifier, logger, true),
	)

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	sessions.Shutdown()

	logger.Info("Server stopped")
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: sharedDatabase.MigrationsDir,
		MigrationsFS:   sharedDatabase.MigrationsFS,
	}, pool, logger)
	return migrator.Up(ctx)
}

// setupInFlightSet returns a Redis-backed set when REDIS_ADDR is set and an
// in-process one otherwise.
func setupInFlightSet(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (interfaces.InFlightSet, func()) {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not set, asset claims are kept in memory")
		return service.NewMemoryInFlightSet(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return sharedDatabase.NewRedisInFlightSet(client, cfg.KeyPrefix, cfg.InFlightTTL, logger), func() { _ = client.Close() }
}

func setupVerifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (authutils.TokenVerifier, error) {
	if cfg.JWKSURL != "" {
		return authutils.NewJWKSVerifier(ctx, cfg.JWKSURL, logger)
	}
	return authutils.NewJWTVerifier(cfg.JWTSecret, logger)
}

// connectRabbitMQ dials with a fixed number of retries.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
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
