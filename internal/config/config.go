// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`
	// DBURL enables the completion attempt audit log when set.
	DBURL string `env:"DB_URL"`
	// RedisURL enables the shared provider throttle when set.
	RedisURL string `env:"REDIS_URL"`

	OpenAIAPIKey           string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL          string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel            string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITemperature      float64       `env:"OPENAI_TEMPERATURE" envDefault:"0.2"`
	OpenAIDefaultMaxTokens int           `env:"OPENAI_DEFAULT_MAX_TOKENS" envDefault:"2000"`
	OpenAITimeout          time.Duration `env:"OPENAI_TIMEOUT" envDefault:"90s"`
	// OpenAIRateLimitPerMin is the shared token bucket size; 0 disables throttling.
	OpenAIRateLimitPerMin int `env:"OPENAI_RATE_LIMIT_PER_MIN" envDefault:"60"`
	// Circuit breaker guarding the completion endpoint.
	CircuitFailureThreshold int           `env:"CIRCUIT_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitRecoveryTimeout  time.Duration `env:"CIRCUIT_RECOVERY_TIMEOUT" envDefault:"30s"`

	EvaluationEnabled bool `env:"EVALUATION_ENABLED" envDefault:"true"`

	// TikaURL specifies the base URL for the Apache Tika server used for text extraction
	TikaURL         string `env:"TIKA_URL" envDefault:"http://tika:9998"`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"coverletter-assistant"`

	MaxUploadMB           int64         `env:"MAX_UPLOAD_MB" envDefault:"10"`
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" envDefault:"180s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"200s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	// AttemptRetentionDays bounds how long attempt audit rows are kept.
	AttemptRetentionDays int           `env:"ATTEMPT_RETENTION_DAYS" envDefault:"30"`
	CleanupInterval      time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	// Caller-side backoff for retryable analysis failures
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"120s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"2s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.5"`
	AIBackoffMaxRetries      uint64        `env:"AI_BACKOFF_MAX_RETRIES" envDefault:"3"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// AuditEnabled reports whether completion attempts are persisted.
func (c Config) AuditEnabled() bool { return c.DBURL != "" }

// ThrottleEnabled reports whether the shared Redis token bucket is used.
func (c Config) ThrottleEnabled() bool { return c.RedisURL != "" && c.OpenAIRateLimitPerMin > 0 }
