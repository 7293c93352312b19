package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetd/internal/backend"
	"budgetd/internal/budget"
	"budgetd/internal/cache"
	"budgetd/internal/cli"
	apphttp "budgetd/internal/http"
	applog "budgetd/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to create backend config", applog.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	budgets := budget.NewManager(result.Backend, result.Backend, result.Writer, budget.ManagerConfig{
		Options: budget.Options{
			Window:       cfg.BudgetDebounce,
			FetchTimeout: cfg.BudgetFetchTimeout,
		},
		MaxSessions: cfg.SessionCacheSize,
		SessionTTL:  cfg.SessionTTL,
	}, logger)

	// Idle sessions are flushed and dropped by the janitor, not only on access.
	janitor := cache.NewJanitor()
	janitor.Register(budgets.Sessions())
	janitor.OnReport(func(cleaned int) {
		logger.Debug("Expired budget sessions closed", "count", cleaned)
	})
	sweepEvery := time.Minute
	if cfg.SessionTTL > 0 && cfg.SessionTTL/2 < sweepEvery {
		sweepEvery = cfg.SessionTTL / 2
	}
	janitor.Start(sweepEvery)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:    ":" + cfg.Port,
		Backend: result.Backend,
		Budgets: budgets,
		Ping:    result.Ping,
		Logger:  logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		janitor.Stop()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting budgetd",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"debounce", cfg.BudgetDebounce.String(),
		"amqp_enabled", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
