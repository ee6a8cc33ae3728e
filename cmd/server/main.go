// Package main implements the entry point for the Inkwell API server, which
// accepts article generation jobs, meters them against users' credit
// balances and runs them on a background worker pool.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// run loads configuration, wires the application and serves until ctx is done.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"queue_driver", cfg.Queue.Driver,
		"default_model", cfg.LLM.DefaultModel)
	slog.Debug("optional integrations",
		"kafka_enabled", len(cfg.Events.KafkaBrokers) > 0,
		"gemini_key_present", cfg.LLM.GeminiAPIKey != "")

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}
