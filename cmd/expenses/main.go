package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenses/internal/cache"
	"expenses/internal/cli"
	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/services"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger("info", applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	ctx := context.Background()

	var publisher services.ChangePublisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		publisher = client
	}
	svc := cli.InitLedger(ctx, logger, cfg, publisher)

	caches := cache.NewManager()
	caches.Register(svc.ViewCache())
	caches.StartCleanup(cfg.ViewCacheTTL)

	// Validate already rejected malformed entries
	trusted, _ := cfg.TrustedProxyPrefixes()
	srv := apphttp.NewServer(":"+cfg.Port, svc, logger, trusted)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.LogError(ctx, "Server shutdown error", err, applog.OpShutdown, applog.NewFields())
		}
		caches.Stop()
		if err := svc.Close(); err != nil {
			logger.LogError(ctx, "Ledger close error", err, applog.OpShutdown, applog.NewFields())
		}
	})

	logger.Info("Starting expenses server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
