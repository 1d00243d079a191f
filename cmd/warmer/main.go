// Package main is the entry point for the cache warmer.
//
// Deployed, it runs as a Lambda invoked by an EventBridge schedule; each
// invocation walks every active tenant once and primes its daily usage
// cache. Run outside Lambda it loops on WARMER_INTERVAL until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"licensegate/internal/app"
	"licensegate/internal/config"
	"licensegate/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires the warmer and either hands it to the Lambda runtime or runs
// it on a ticker.
func run() error {
	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel).With("component", "cache-warmer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	tel, err := app.OpenTelemetry(ctx, cfg.Metrics, cfg.Queue.EndpointURL, logger)
	if err != nil {
		return err
	}

	warmer := scheduler.NewCacheWarmer(scheduler.CacheWarmerConfig{
		Tenants:   deps.Licenses,
		Usage:     deps.Accountant(cfg.Admission, logger, tel.Collector.RecordDegraded),
		Metrics:   tel.Collector,
		BatchSize: cfg.Warmer.BatchSize,
		Logger:    logger,
	})

	if isLambdaEnvironment() {
		logger.Info("cache warmer initialized (lambda)")
		lambda.Start(newHandler(warmer, tel, logger))
		return nil
	}

	logger.Info("cache warmer running", "interval", cfg.Warmer.Interval)
	go tel.Run(ctx)
	warmer.RunEvery(ctx, cfg.Warmer.Interval)
	return nil
}

// isLambdaEnvironment reports whether the process runs inside Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return hasRuntimeAPI
}

// newHandler wraps one warm pass for the Lambda runtime. A listing failure
// fails the invocation so the schedule's retry policy applies; per-tenant
// failures do not.
func newHandler(w *scheduler.CacheWarmer, tel *app.Telemetry, logger *slog.Logger) func(ctx context.Context) (scheduler.WarmResult, error) {
	return func(ctx context.Context) (scheduler.WarmResult, error) {
		res, err := w.Warm(ctx)
		tel.Flush(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "cache warm failed", "error", err, "warmed", res.Warmed)
			return res, err
		}
		return res, nil
	}
}
