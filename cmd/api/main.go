// Package main is the entry point for the licensegate admission API.
//
// It loads configuration, opens Postgres and the counter store, builds the
// admission controller and serves it through the core chassis until SIGINT
// or SIGTERM, then drains in-flight requests before closing stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"licensegate/internal/admission"
	"licensegate/internal/advisor"
	"licensegate/internal/api/handlers"
	"licensegate/internal/app"
	"licensegate/internal/catalog"
	"licensegate/internal/config"
	"licensegate/internal/core"
	"licensegate/internal/queue"
	"licensegate/internal/ratelimit"
	"licensegate/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires the API from configuration and serves until SIGINT or
// SIGTERM.
func run() error {
	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("licensegate API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

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
	go tel.Run(ctx)

	plans := catalog.NewStaticCatalog()
	accountant := deps.Accountant(cfg.Admission, logger, tel.Collector.RecordDegraded)

	limiter := ratelimit.New(deps.Counters, ratelimit.PolicyFromFailOpen(cfg.Admission.RateLimitFailOpen), logger, ratelimit.WithTimeout(cfg.Admission.StoreTimeout))
	logger.Info("rate limiter configured", "failure_policy", limiter.Policy().String())

	controllerCfg := admission.ControllerConfig{
		Licenses:      deps.Licenses,
		Catalog:       plans,
		Limiter:       limiter,
		Usage:         accountant,
		Advisor:       advisor.New(accountant, plans),
		DecisionStore: deps.Counters,
		DecisionTTL:   cfg.Admission.DecisionCacheTTL,
		StoreTimeout:  cfg.Admission.StoreTimeout,
		Metrics:       tel.Collector,
		Logger:        logger,
		Clock:         types.RealClock{},
	}
	if cfg.Queue.UpgradeOpportunitiesURL != "" {
		awsCfg, err := app.AWSConfig(ctx, cfg.Queue.Region, cfg.Queue.EndpointURL)
		if err != nil {
			return err
		}
		controllerCfg.Notifier = queue.NewUpgradeNotifier(sqs.NewFromConfig(awsCfg), cfg.Queue, logger)
	}
	controller := admission.NewController(controllerCfg)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = tel.Collector
	srv.MetricsHandler = tel.Handler
	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: deps.Pool.Ping},
		core.ProbeFunc{ProbeName: "usage_store", Fn: deps.PingCounters},
	}

	accessHandler := handlers.NewAccessHandler(controller, srv.Validator, logger)
	usageHandler := handlers.NewUsageHandler(controller, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/access", accessHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/tenants", usageHandler.RegisterRoutes) },
	)
	srv.MountRoutes()

	return serve(ctx, srv, cfg)
}

// serve runs the listener until ctx is cancelled, then shuts down within
// the configured timeout. Stores are closed by the caller afterwards.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config) error {
	httpServer := srv.HTTPServer()

	serverErr := make(chan error, 1)
	go func() {
		srv.Logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		srv.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		srv.Logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}
	srv.Logger.Info("server stopped cleanly")
	return nil
}
