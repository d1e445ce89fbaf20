// Package config loads backend configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the backend.
type Config struct {
	Server   ServerConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	OpenAI   OpenAIConfig
	Vapi     VapiConfig
	Admin    AdminConfig
	Logging  LoggingConfig
	Workers  WorkerConfig
	RateFile string `env:"RATE_LIMITS_FILE"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=5000"`

	// Matches the deployment descriptor: 120s request timeout, 5s keep-alive.
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT,default=120s"`
	KeepAliveTimeout time.Duration `env:"KEEP_ALIVE_TIMEOUT,default=5s"`
}

// MongoConfig controls the document store connection.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DATABASE,default=Nexa"`
}

// RedisConfig controls the response cache backend.
type RedisConfig struct {
	URL string `env:"REDIS_URL,default=redis://localhost:6379"`
}

// OpenAIConfig controls the transcript extraction client.
type OpenAIConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY"`
	BaseURL string        `env:"OPENAI_BASE_URL"`
	Model   string        `env:"OPENAI_MODEL,default=gpt-3.5-turbo-1106"`
	Timeout time.Duration `env:"OPENAI_TIMEOUT,default=25s"`
}

// VapiConfig controls the Vapi.ai integration.
type VapiConfig struct {
	APIKey      string        `env:"VAPI_API_KEY"`
	AssistantID string        `env:"VAPI_ASSISTANT_ID"`
	SecretToken string        `env:"VAPI_SECRET_TOKEN"`
	BaseURL     string        `env:"VAPI_BASE_URL,default=https://api.vapi.ai"`
	Timeout     time.Duration `env:"VAPI_TIMEOUT,default=25s"`

	// Cron expression for the background call-log sync. Empty disables it.
	SyncSchedule string `env:"VAPI_SYNC_SCHEDULE"`
}

// AdminConfig controls the JWT-protected admin surface. An empty secret
// disables the admin routes entirely.
type AdminConfig struct {
	JWTSecret string `env:"ADMIN_JWT_SECRET"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=json"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX"`
}

// WorkerConfig bounds background transcript processing.
type WorkerConfig struct {
	MaxWorkers int `env:"MAX_WORKERS,default=4"`
}

// requiredVars names the settings that must be present, with the description
// reported when one is missing.
var requiredVars = []struct {
	name        string
	description string
	get         func(*Config) string
}{
	{"MONGO_URI", "MongoDB connection string", func(c *Config) string { return c.Mongo.URI }},
	{"OPENAI_API_KEY", "OpenAI API key", func(c *Config) string { return c.OpenAI.APIKey }},
	{"VAPI_API_KEY", "Vapi.ai API key", func(c *Config) string { return c.Vapi.APIKey }},
	{"VAPI_ASSISTANT_ID", "Vapi.ai Assistant ID", func(c *Config) string { return c.Vapi.AssistantID }},
	{"VAPI_SECRET_TOKEN", "Vapi.ai Secret Token", func(c *Config) string { return c.Vapi.SecretToken }},
}

// Load reads configuration from the environment, honouring a local .env file
// when one exists, and validates required settings.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required variables are set and numeric knobs are sane.
func (c *Config) Validate() error {
	var missing []string
	for _, v := range requiredVars {
		if strings.TrimSpace(v.get(c)) == "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", v.name, v.description))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Server.Port)
	}
	if c.Workers.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be positive")
	}
	return nil
}
