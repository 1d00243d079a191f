// Package config defines the process configuration for the licensegate
// services. It is loaded once at startup and treated as immutable.
//
// Values are resolved in priority order:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"fmt"
	"time"

	"licensegate/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the
// section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"licensegate"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Admission AdmissionConfig
	Metrics   MetricsConfig
	Queue     QueueConfig
	Warmer    WarmerConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds the record store connection and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	ApplySchema       bool          `envconfig:"DB_APPLY_SCHEMA" default:"false"`
}

// RedisConfig holds the counter store connection. An empty URL selects the
// in-process store, which is only allowed for APP_ENV=local.
type RedisConfig struct {
	URL                SecretString  `envconfig:"REDIS_URL"`
	DialTimeout        time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	BreakerFailures    uint32        `envconfig:"REDIS_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"REDIS_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// AdmissionConfig tunes the admission engine.
type AdmissionConfig struct {
	DecisionCacheTTL time.Duration `envconfig:"DECISION_CACHE_TTL" default:"5m" validate:"gt=0"`
	UsageCacheTTL    time.Duration `envconfig:"USAGE_CACHE_TTL" default:"1h" validate:"gt=0"`
	// StoreTimeout bounds every counter and record store call.
	StoreTimeout      time.Duration `envconfig:"STORE_TIMEOUT" default:"500ms" validate:"gt=0"`
	RateLimitFailOpen bool          `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"true"`
	UsageTimezone     string        `envconfig:"USAGE_TIMEZONE" default:"UTC"`
}

// Location resolves UsageTimezone.
func (a AdmissionConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.UsageTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid USAGE_TIMEZONE %q: %w", a.UsageTimezone, err)
	}
	return loc, nil
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend   string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"LicenseGate"`
	Region    string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// QueueConfig holds SQS destinations. An empty queue URL disables publishing.
type QueueConfig struct {
	UpgradeOpportunitiesURL string `envconfig:"SQS_UPGRADE_OPPORTUNITIES" validate:"omitempty,url"`
	Region                  string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL             string `envconfig:"AWS_ENDPOINT_URL"`
}

// WarmerConfig tunes the cache warming job.
type WarmerConfig struct {
	BatchSize int           `envconfig:"WARMER_BATCH_SIZE" default:"50" validate:"gt=0"`
	Interval  time.Duration `envconfig:"WARMER_INTERVAL" default:"15m" validate:"gt=0"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
