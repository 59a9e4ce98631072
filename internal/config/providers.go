package config

import (
	"fmt"
	"time"

	"nexttale/shared/utils"
)

// Provider settings shared by the server and the worker. Fields carry both envconfig and
// cleanenv tags so each loader reads the same variables.

// Story text providers.
const (
	StoryProviderEdge   = "edge"
	StoryProviderOpenAI = "openai"
	StoryProviderOllama = "ollama"
)

// Image providers.
const (
	ImageProviderEdge = "edge"
	ImageProviderSana = "sana"
	ImageProviderNone = "none"
)

// AIConfig selects and configures the story text generator.
type AIConfig struct {
	StoryProvider string `envconfig:"STORY_AI_PROVIDER" default:"edge" env:"STORY_AI_PROVIDER" env-default:"edge"`

	EdgeFunctionsURL string        `envconfig:"EDGE_FUNCTIONS_URL" env:"EDGE_FUNCTIONS_URL"`
	StoryFunction    string        `envconfig:"EDGE_STORY_FUNCTION" default:"generate-story" env:"EDGE_STORY_FUNCTION" env-default:"generate-story"`
	ImageFunction    string        `envconfig:"EDGE_IMAGE_FUNCTION" default:"generate-image" env:"EDGE_IMAGE_FUNCTION" env-default:"generate-image"`
	VideoFunction    string        `envconfig:"EDGE_VIDEO_FUNCTION" default:"generate-video" env:"EDGE_VIDEO_FUNCTION" env-default:"generate-video"`
	EdgeTimeout      time.Duration `envconfig:"EDGE_TIMEOUT" default:"60s" env:"EDGE_TIMEOUT" env-default:"60s"`

	OpenAIBaseURL string `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1" env:"AI_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	OpenAIModel   string `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat" env:"AI_MODEL" env-default:"deepseek/deepseek-chat"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434" env:"OLLAMA_URL" env-default:"http://localhost:11434"`
	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3" env:"OLLAMA_MODEL" env-default:"llama3"`

	AITimeout          time.Duration `envconfig:"AI_TIMEOUT" default:"120s" env:"AI_TIMEOUT" env-default:"120s"`
	AIMaxContextTokens int           `envconfig:"AI_MAX_CONTEXT_TOKENS" default:"6000" env:"AI_MAX_CONTEXT_TOKENS" env-default:"6000"`
	AITemperature      float32       `envconfig:"AI_TEMPERATURE" default:"0.8" env:"AI_TEMPERATURE" env-default:"0.8"`

	ImageProvider string        `envconfig:"IMAGE_PROVIDER" default:"edge" env:"IMAGE_PROVIDER" env-default:"edge"`
	SanaBaseURL   string        `envconfig:"SANA_SERVER_BASE_URL" env:"SANA_SERVER_BASE_URL"`
	SanaTimeout   time.Duration `envconfig:"SANA_SERVER_TIMEOUT" default:"120s" env:"SANA_SERVER_TIMEOUT" env-default:"120s"`
	ImageRatio    string        `envconfig:"IMAGE_RATIO" default:"16:9" env:"IMAGE_RATIO" env-default:"16:9"`
	VideoEnabled  bool          `envconfig:"VIDEO_ENABLED" default:"false" env:"VIDEO_ENABLED" env-default:"false"`

	// Secrets, read from files.
	AIAPIKey       string `ignored:"true"`
	EdgeServiceKey string `ignored:"true"`
}

// MinIOConfig configures the asset bucket.
type MinIOConfig struct {
	Endpoint      string `envconfig:"MINIO_ENDPOINT" env:"MINIO_ENDPOINT"`
	AccessKey     string `envconfig:"MINIO_ACCESS_KEY" env:"MINIO_ACCESS_KEY"`
	Bucket        string `envconfig:"MINIO_BUCKET" default:"story-assets" env:"MINIO_BUCKET" env-default:"story-assets"`
	UseSSL        bool   `envconfig:"MINIO_USE_SSL" default:"false" env:"MINIO_USE_SSL" env-default:"false"`
	PublicBaseURL string `envconfig:"MINIO_PUBLIC_BASE_URL" env:"MINIO_PUBLIC_BASE_URL"`

	SecretKey string `ignored:"true"`
}

// Enabled reports whether an asset bucket is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != ""
}

// RedisConfig configures the shared in-flight set. An empty address keeps claims in memory.
type RedisConfig struct {
	Addr        string        `envconfig:"REDIS_ADDR" env:"REDIS_ADDR"`
	DB          int           `envconfig:"REDIS_DB" default:"0" env:"REDIS_DB" env-default:"0"`
	KeyPrefix   string        `envconfig:"REDIS_INFLIGHT_PREFIX" default:"nexttale:inflight" env:"REDIS_INFLIGHT_PREFIX" env-default:"nexttale:inflight"`
	InFlightTTL time.Duration `envconfig:"REDIS_INFLIGHT_TTL" default:"10m" env:"REDIS_INFLIGHT_TTL" env-default:"10m"`

	Password string `ignored:"true"`
}

func (c *AIConfig) loadSecrets() error {
	var err error
	if c.AIAPIKey, err = utils.ReadOptionalSecret("ai_api_key", "AI_API_KEY"); err != nil {
		return err
	}
	if c.EdgeServiceKey, err = utils.ReadOptionalSecret("edge_service_key", "EDGE_SERVICE_KEY"); err != nil {
		return err
	}
	return nil
}

func (c *AIConfig) validate() error {
	switch c.StoryProvider {
	case StoryProviderEdge:
		if c.EdgeFunctionsURL == "" {
			return fmt.Errorf("EDGE_FUNCTIONS_URL is required for story provider %q", c.StoryProvider)
		}
	case StoryProviderOpenAI:
		if c.AIAPIKey == "" {
			return fmt.Errorf("ai_api_key secret is required for story provider %q", c.StoryProvider)
		}
	case StoryProviderOllama:
	default:
		return fmt.Errorf("unknown STORY_AI_PROVIDER %q", c.StoryProvider)
	}

	switch c.ImageProvider {
	case ImageProviderEdge:
		if c.EdgeFunctionsURL == "" {
			return fmt.Errorf("EDGE_FUNCTIONS_URL is required for image provider %q", c.ImageProvider)
		}
	case ImageProviderSana:
		if c.SanaBaseURL == "" {
			return fmt.Errorf("SANA_SERVER_BASE_URL is required for image provider %q", c.ImageProvider)
		}
	case ImageProviderNone:
	default:
		return fmt.Errorf("unknown IMAGE_PROVIDER %q", c.ImageProvider)
	}
	if c.VideoEnabled && c.EdgeFunctionsURL == "" {
		return fmt.Errorf("EDGE_FUNCTIONS_URL is required when VIDEO_ENABLED")
	}
	return nil
}

func (c *MinIOConfig) loadSecrets() error {
	var err error
	c.SecretKey, err = utils.ReadOptionalSecret("minio_secret_key", "MINIO_SECRET_KEY")
	return err
}

func (c *RedisConfig) loadSecrets() error {
	var err error
	c.Password, err = utils.ReadOptionalSecret("redis_password", "REDIS_PASSWORD")
	return err
}
