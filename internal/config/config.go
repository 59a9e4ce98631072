package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"nexttale/shared/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the API server settings.
type Config struct {
	Port           string   `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding    string   `envconfig:"LOG_ENCODING" default:"json"`
	LogDevelopment bool     `envconfig:"LOG_DEVELOPMENT" default:"false"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RunMigrations  bool     `envconfig:"RUN_MIGRATIONS" default:"true"`

	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBPassword    string        `ignored:"true"`

	// Empty disables server-side pre-generation.
	RabbitMQURL        string `envconfig:"RABBITMQ_URL"`
	PregenerationQueue string `envconfig:"PREGENERATION_TASK_QUEUE" default:"story_pregeneration_tasks"`

	PollTimeout       time.Duration `envconfig:"READER_POLL_TIMEOUT" default:"12s"`
	PollInterval      time.Duration `envconfig:"READER_POLL_INTERVAL" default:"1500ms"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"25s"`
	SessionIdleTTL    time.Duration `envconfig:"READER_SESSION_IDLE_TTL" default:"30m"`
	ChapterPoints     int           `envconfig:"CHAPTER_POINTS" default:"10"`
	EndingBonusPoints int           `envconfig:"ENDING_BONUS_POINTS" default:"50"`

	// One of JWTSecret (secret file) or JWKSURL must be set.
	JWKSURL   string `envconfig:"AUTH_JWKS_URL"`
	JWTSecret string `ignored:"true"`

	AI    AIConfig
	MinIO MinIOConfig
	Redis RedisConfig
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig reads .env (if any), the environment and /run/secrets.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}

	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.JWTSecret, loadErr = utils.ReadOptionalSecret("jwt_secret", "JWT_SECRET")
	if loadErr != nil {
		return nil, loadErr
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Server configuration loaded:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  DB Max Conns: %d, Idle Timeout: %v", cfg.DBMaxConns, cfg.DBIdleTimeout)
	log.Printf("  RabbitMQ: %s", redactURL(cfg.RabbitMQURL))
	log.Printf("  Poll: every %v for %v, generation timeout %v", cfg.PollInterval, cfg.PollTimeout, cfg.GenerationTimeout)
	log.Printf("  Session idle TTL: %v", cfg.SessionIdleTTL)
	log.Printf("  Story provider: %s, image provider: %s, video: %t", cfg.AI.StoryProvider, cfg.AI.ImageProvider, cfg.AI.VideoEnabled)
	log.Printf("  MinIO: %s (bucket %s)", valueOrOff(cfg.MinIO.Endpoint), cfg.MinIO.Bucket)
	log.Printf("  Redis: %s", valueOrOff(cfg.Redis.Addr))
	if cfg.JWTSecret != "" {
		log.Println("  JWT Secret: [LOADED]")
	}
	if cfg.JWKSURL != "" {
		log.Printf("  JWKS URL: %s", cfg.JWKSURL)
	}

	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return errors.New("either the jwt_secret secret or AUTH_JWKS_URL must be set")
	}
	if c.PollInterval <= 0 || c.PollTimeout < c.PollInterval {
		return fmt.Errorf("READER_POLL_TIMEOUT (%v) must be at least READER_POLL_INTERVAL (%v) and both positive", c.PollTimeout, c.PollInterval)
	}
	if c.GenerationTimeout <= 0 {
		return errors.New("GENERATION_TIMEOUT must be positive")
	}
	if c.AI.ImageProvider == ImageProviderSana && !c.MinIO.Enabled() {
		return errors.New("IMAGE_PROVIDER=sana needs MINIO_ENDPOINT and MINIO_ACCESS_KEY")
	}
	return c.AI.validate()
}

func redactURL(raw string) string {
	if raw == "" {
		return "[OFF]"
	}
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}

func valueOrOff(v string) string {
	if v == "" {
		return "[OFF]"
	}
	return v
}
