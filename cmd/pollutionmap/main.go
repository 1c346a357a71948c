package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lucasfepe/5G-PollutionMap/internal/app"
	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/logging"
	"github.com/lucasfepe/5G-PollutionMap/internal/output"
)

const appName = "pollutionmap"

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd := "fetch"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		_ = output.WriteError(os.Stderr, err)
		os.Exit(1)
	}

	newLogger := func(w io.Writer) *slog.Logger {
		logger := logging.New(cfg, version, appName, w)
		slog.SetDefault(logger)
		logger.Debug("starting",
			"command", cmd,
			"version", version,
			"env", cfg.AppEnv,
			"log_level", cfg.LogLevel.String(),
		)
		return logger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "fetch":
		// Fetch owns stderr: it holds logs back and reports its own failure.
		if err := app.Fetch(ctx, cfg, newLogger, os.Stdout, os.Stderr); err != nil {
			stop()
			os.Exit(1)
		}
	case "serve":
		logger := newLogger(os.Stderr)
		if err := app.Serve(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("serve failed", "error", err)
			stop()
			os.Exit(1)
		}
		logger.Info("shutting down")
	case "migrate":
		if err := app.Migrate(ctx, cfg, newLogger(os.Stderr)); err != nil {
			_ = output.WriteError(os.Stderr, fmt.Errorf("migrate: %w", err))
			stop()
			os.Exit(1)
		}
	default:
		_ = output.WriteError(os.Stderr, fmt.Errorf("unknown command %q (allowed: fetch, serve, migrate)", cmd))
		stop()
		os.Exit(2)
	}
}
