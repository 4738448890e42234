// Package config defines the process configuration for the recipe scheduler
// binaries. Configuration is loaded once at startup and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"fmt"
	"time"

	"recipescheduler/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Queue backends selectable through QUEUE_BACKEND.
const (
	QueueBackendPostgres = "postgres"
	QueueBackendRedis    = "redis"
	QueueBackendMemory   = "memory"
)

// Push providers selectable through PUSH_PROVIDER.
const (
	PushProviderExpo = "expo"
	PushProviderStub = "stub"
)

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"recipe-scheduler"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	AWS           AWSConfig
	Queue         QueueConfig
	Reminder      ReminderConfig
	Push          PushConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string   `envconfig:"PORT" default:"3000"`
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig locates the Redis server backing the delay queue when
// QUEUE_BACKEND=redis. URL takes precedence over Host/Port when set.
type RedisConfig struct {
	URL       SecretString `envconfig:"REDIS_URL"`
	Host      string       `envconfig:"REDIS_HOST" default:"localhost"`
	Port      int          `envconfig:"REDIS_PORT" default:"6379" validate:"min=1,max=65535"`
	Password  SecretString `envconfig:"REDIS_PASSWORD"`
	DB        int          `envconfig:"REDIS_DB" default:"0" validate:"min=0"`
	KeyPrefix string       `envconfig:"REDIS_KEY_PREFIX" default:"reminder"`
}

// Addr returns the host:port form go-redis expects.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// ReminderQueueURL is the SQS queue the relay forwards due reminders to.
	// Empty disables the relay.
	ReminderQueueURL string `envconfig:"SQS_REMINDERS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// QueueConfig controls the delay queue backend and the claim loop.
type QueueConfig struct {
	Backend      string        `envconfig:"QUEUE_BACKEND" default:"postgres" validate:"oneof=postgres redis memory"`
	PollInterval time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"1s" validate:"gt=0"`
	BatchSize    int           `envconfig:"QUEUE_BATCH_SIZE" default:"50" validate:"min=1,max=1000"`
	// Lease is how long a claimed job stays invisible before it becomes
	// claimable again when no Ack arrives.
	Lease time.Duration `envconfig:"QUEUE_LEASE" default:"5m" validate:"gt=0"`
}

// ReminderConfig holds the scheduling and dispatch knobs.
type ReminderConfig struct {
	LeadMinutes       int `envconfig:"REMINDER_LEAD_MINUTES" default:"15" validate:"min=0"`
	WorkerConcurrency int `envconfig:"REMINDER_WORKER_CONCURRENCY" default:"4" validate:"min=1,max=256"`
}

// LeadDuration returns the reminder lead as a time.Duration.
func (c ReminderConfig) LeadDuration() time.Duration {
	return time.Duration(c.LeadMinutes) * time.Minute
}

// PushConfig selects and configures the push delivery provider.
type PushConfig struct {
	Provider    string        `envconfig:"PUSH_PROVIDER" default:"expo" validate:"oneof=expo stub"`
	ExpoURL     string        `envconfig:"EXPO_PUSH_URL" default:"https://exp.host/--/api/v2/push/send" validate:"url"`
	AccessToken SecretString  `envconfig:"EXPO_ACCESS_TOKEN"`
	Timeout     time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s" validate:"gt=0"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"RecipeScheduler"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
