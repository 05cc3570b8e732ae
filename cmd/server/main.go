package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/app"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/config"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	logger.Init(err == nil && cfg.IsProduction())
	defer logger.Sync()

	if err != nil {
		logger.Fatal("invalid configuration", map[string]any{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "kilexep-api",
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
	})
	if err != nil {
		logger.Fatal("failed to set up tracing", map[string]any{
			"error": err.Error(),
		})
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("kilexep-api started", map[string]any{
		"port": cfg.AppPort,
		"env":  cfg.AppEnv,
	})

	runErr := application.Run(ctx)

	if err := application.Close(); err != nil {
		logger.Error("closing infrastructure", map[string]any{"error": err.Error()})
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("flushing traces", map[string]any{"error": err.Error()})
	}

	if runErr != nil {
		logger.Error("kilexep-api stopped with error", map[string]any{"error": runErr.Error()})
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("kilexep-api stopped cleanly", nil)
}
