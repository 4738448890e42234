// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator, then the
//     cross-field rules validator tags cannot express.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

const localEnv = "local"

// LoadConfig loads and validates the configuration from the process
// environment and an optional .env file in the working directory.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// godotenv.Load does NOT override variables already in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	// The in-process queue loses every pending reminder on restart.
	if cfg.Environment != localEnv && cfg.Queue.Backend == QueueBackendMemory {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("QUEUE_BACKEND=%s is only allowed when APP_ENV=%s", QueueBackendMemory, localEnv),
		}
	}
	if cfg.Queue.Backend == QueueBackendRedis && !cfg.Redis.URL.IsSet() && cfg.Redis.Host == "" {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "REDIS_URL or REDIS_HOST is required when QUEUE_BACKEND=redis",
		}
	}
	return nil
}
