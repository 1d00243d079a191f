// Package app opens the stores and clients shared by the licensegate
// binaries. Each binary owns what it opens and closes it on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"licensegate/internal/config"
	"licensegate/internal/counter"
	"licensegate/internal/db"
	"licensegate/internal/usage"
)

// Deps holds opened infrastructure. Close releases it in reverse order.
type Deps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Counters counter.Store
	Licenses *db.LicenseRepository
	Events   *db.UsageEventRepository
	Location *time.Location
}

// Open connects to Postgres and the counter store described by cfg.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	loc, err := cfg.Admission.Location()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Database.ApplySchema {
		if err := db.ApplySchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		logger.Info("database schema applied")
	}

	d := &Deps{
		Pool:     pool,
		Licenses: db.NewLicenseRepository(pool),
		Events:   db.NewUsageEventRepository(pool),
		Location: loc,
	}
	if err := d.openCounters(ctx, cfg.Redis, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

// openCounters picks Redis behind a circuit breaker when a URL is set, and
// the in-process store otherwise.
func (d *Deps) openCounters(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) error {
	if cfg.URL.IsZero() {
		logger.Warn("REDIS_URL not set; using in-process counter store")
		d.Counters = counter.NewMemoryStore()
		return nil
	}
	client, err := counter.Dial(ctx, cfg.URL.Unmask(), cfg.DialTimeout)
	if err != nil {
		return err
	}
	d.Redis = client
	d.Counters = counter.NewBreakerStore(counter.NewRedisStore(client), breakerSettings(cfg), logger)
	return nil
}

// breakerSettings overlays configured thresholds on the defaults.
func breakerSettings(cfg config.RedisConfig) counter.BreakerSettings {
	s := counter.DefaultBreakerSettings()
	if cfg.BreakerFailures > 0 {
		s.ConsecutiveFailures = cfg.BreakerFailures
	}
	if cfg.BreakerOpenTimeout > 0 {
		s.OpenTimeout = cfg.BreakerOpenTimeout
	}
	return s
}

// PingCounters reports the counter store unhealthy while its circuit
// breaker is open, and otherwise pings the backend.
func (d *Deps) PingCounters(ctx context.Context) error {
	if b, ok := d.Counters.(*counter.BreakerStore); ok && b.State() == gobreaker.StateOpen {
		return fmt.Errorf("counter store circuit breaker is %s", b.State())
	}
	return d.Counters.Ping(ctx)
}

// Accountant builds the usage accountant over the opened stores.
func (d *Deps) Accountant(cfg config.AdmissionConfig, logger *slog.Logger, onDegraded func(component string)) *usage.Accountant {
	return usage.NewAccountant(d.Events, d.Counters, usage.Config{
		DailyTTL:     cfg.UsageCacheTTL,
		StoreTimeout: cfg.StoreTimeout,
		Location:     d.Location,
	}, logger, usage.WithDegradedHook(onDegraded))
}

// Close releases the Redis client and the pool.
func (d *Deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// AWSConfig loads SDK config for region, pointing every client at endpoint
// when set (LocalStack).
func AWSConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}

// NewLogger builds the JSON process logger at level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// SecretProvider picks SSM outside local runs.
func SecretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	return config.NewSSMProvider(os.Getenv("AWS_REGION"))
}
