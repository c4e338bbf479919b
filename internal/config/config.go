// Package config defines the global configuration for the AirVault top-up
// engine. Configuration is loaded once at process start and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, optionally seeded from a .env file in local development.
//
// Any missing required value or invalid format fails the process immediately
// on startup.
package config

import (
	"time"

	"airvault/internal/types"
)

// SecretString aliases types.SecretString, the redacted secret type used for
// credentials so they never appear in logs or config dumps.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"airvault-topup-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Gateway  GatewayConfig
	Ledger   LedgerConfig
	Executor ExecutorConfig
	Security SecurityConfig
	Archive  ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`
}

// RedisConfig holds the balance cache connection settings.
type RedisConfig struct {
	Addr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	BalanceTTL time.Duration `envconfig:"REDIS_BALANCE_TTL" default:"30s"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"eu-west-1"`
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"required,url"`
	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// GatewayConfig holds the telco top-up gateway credentials.
type GatewayConfig struct {
	BaseURL string       `envconfig:"GATEWAY_BASE_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"GATEWAY_API_KEY" validate:"required"`
}

// LedgerConfig holds the wallet ledger service credentials.
type LedgerConfig struct {
	BaseURL string       `envconfig:"LEDGER_BASE_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"LEDGER_API_KEY" validate:"required"`
}

// ExecutorConfig tunes the scheduled top-up runner.
type ExecutorConfig struct {
	BatchSize   int           `envconfig:"EXECUTOR_BATCH_SIZE" default:"100" validate:"min=1"`
	Concurrency int           `envconfig:"EXECUTOR_CONCURRENCY" default:"8" validate:"min=1"`
	Interval    time.Duration `envconfig:"EXECUTOR_INTERVAL" default:"1m"`
}

// SecurityConfig holds CORS and per-user traffic limits.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitPerSecond float64  `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"20" validate:"min=1"`
}

// ArchiveConfig tunes the transaction history archiver.
type ArchiveConfig struct {
	RetentionDays int    `envconfig:"ARCHIVE_RETENTION_DAYS" default:"365" validate:"min=30"`
	OutputDir     string `envconfig:"ARCHIVE_OUTPUT_DIR" default:"/tmp/airvault-archive"`
	BatchSize     int    `envconfig:"ARCHIVE_BATCH_SIZE" default:"5000" validate:"min=1"`
}

// IsLocal reports whether the process runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
