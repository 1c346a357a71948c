package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucasfepe/5G-PollutionMap/internal/archive"
	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/httpapi"
	"github.com/lucasfepe/5G-PollutionMap/internal/metrics"
	"github.com/lucasfepe/5G-PollutionMap/internal/openaq"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"apiBaseURL", cfg.APIBaseURL,
		"cacheTTL", cfg.CacheTTL,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"kafkaBrokers", cfg.KafkaBrokers,
		"kafkaTopic", cfg.KafkaTopic,
	)

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var (
		dbConn *sql.DB
		repo   archive.Repository
	)
	if cfg.ArchiveEnabled() {
		dbConn, repo, err = openArchive(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB(dbConn, logger)
		logger.Info("archive ready")
	}

	sinks := openServeSinks(ctx, cfg, logger)

	mux := httpapi.NewMux(httpapi.Deps{
		Source:    pollution.NewCollector(client, openaq.CalgaryQuery, logger),
		OnCollect: afterCollect(repo, sinks, logger),
		CacheTTL:  cfg.CacheTTL,
		Archive:   repo,
		DB:        dbConn,
		Metrics:   metrics.New(),
		Logger:    logger,
	})
	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		closeSinks(sinks, logger)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	closeSinks(sinks, logger)

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// afterCollect archives and publishes each fresh collection. Failures are
// logged; the HTTP response has already been decided by then.
func afterCollect(repo archive.Repository, sinks []Sink, logger *slog.Logger) httpapi.CollectHook {
	return func(ctx context.Context, records []pollution.Record, stats pollution.Stats) {
		if repo != nil {
			run := archive.NewRun(time.Now(), stats)
			if err := repo.SaveRun(ctx, run, records); err != nil {
				logger.Warn("archive run failed", "error", err)
			} else {
				logger.Info("run archived", "runID", run.ID)
			}
		}
		publishAll(ctx, sinks, records, logger)
	}
}
