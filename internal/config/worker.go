package config

import (
	"errors"
	"fmt"
	"time"

	"nexttale/shared/logger"
	"nexttale/shared/utils"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WorkerConfig holds the pre-generation worker settings.
type WorkerConfig struct {
	AppEnv string `env:"APP_ENV" env-default:"development"`
	Logger logger.Config

	DBHost        string        `env:"DB_HOST" env-required:"true"`
	DBPort        string        `env:"DB_PORT" env-default:"5432"`
	DBUser        string        `env:"DB_USER" env-required:"true"`
	DBName        string        `env:"DB_NAME" env-required:"true"`
	DBSSLMode     string        `env:"DB_SSL_MODE" env-default:"disable"`
	DBMaxConns    int           `env:"DB_MAX_CONNECTIONS" env-default:"5"`
	DBIdleTimeout time.Duration `env:"DB_MAX_IDLE_MINUTES" env-default:"5m"`
	DBPassword    string

	RabbitMQ WorkerQueueConfig

	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" env-default:"25s"`
	MaxAttempts       int           `env:"PREGENERATION_MAX_ATTEMPTS" env-default:"3"`
	BaseRetryDelay    time.Duration `env:"PREGENERATION_BASE_RETRY_DELAY" env-default:"1s"`

	MetricsPort    string `env:"WORKER_METRICS_PORT" env-default:"9091"`
	PushGatewayURL string `env:"PUSHGATEWAY_URL"`
	InstanceID     string `env:"INSTANCE_ID" env-default:"worker-1"`

	AI    AIConfig
	MinIO MinIOConfig
	Redis RedisConfig
}

// WorkerQueueConfig configures the pre-generation consumer.
type WorkerQueueConfig struct {
	URL          string `env:"RABBITMQ_URL" env-required:"true"`
	QueueName    string `env:"PREGENERATION_TASK_QUEUE" env-default:"story_pregeneration_tasks"`
	ConsumerName string `env:"RABBITMQ_CONSUMER_NAME" env-default:"pregeneration_worker"`
	Prefetch     int    `env:"RABBITMQ_PREFETCH" env-default:"1"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *WorkerConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadWorker reads .env (if any), the environment and /run/secrets.
func LoadWorker() (*WorkerConfig, error) {
	_ = godotenv.Load()

	var cfg WorkerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker configuration: %w", err)
	}

	var err error
	if cfg.DBPassword, err = utils.ReadSecret("db_password"); err != nil {
		return nil, err
	}
	if err := cfg.AI.loadSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.MinIO.loadSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Redis.loadSecrets(); err != nil {
		return nil, err
	}

	if cfg.MaxAttempts < 1 {
		return nil, errors.New("PREGENERATION_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.AI.StoryProvider == StoryProviderEdge && cfg.AI.EdgeServiceKey == "" {
		return nil, errors.New("the worker needs the edge_service_key secret to call edge functions")
	}
	if cfg.AI.ImageProvider == ImageProviderSana && !cfg.MinIO.Enabled() {
		return nil, errors.New("IMAGE_PROVIDER=sana needs MINIO_ENDPOINT and MINIO_ACCESS_KEY")
	}
	if err := cfg.AI.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
