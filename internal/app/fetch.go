package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lucasfepe/5G-PollutionMap/internal/archive"
	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/logging"
	"github.com/lucasfepe/5G-PollutionMap/internal/openaq"
	"github.com/lucasfepe/5G-PollutionMap/internal/output"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

func newClient(cfg config.Config, logger *slog.Logger) (*openaq.Client, error) {
	return openaq.New(cfg.APIKey,
		openaq.WithBaseURL(cfg.APIBaseURL),
		openaq.WithTimeout(cfg.APITimeout),
		openaq.WithLogger(logger),
	)
}

// LoggerFunc builds a logger writing to w.
type LoggerFunc func(w io.Writer) *slog.Logger

// Fetch runs the pipeline once: collect, archive, write cfg.OutputPath and
// stdout, then publish. Log output is held back until the run finishes: on
// success it is written to stderr, on failure it is dropped and exactly one
// {"error": ...} object is written instead. The output file is left as it
// was on failure.
func Fetch(ctx context.Context, cfg config.Config, newLogger LoggerFunc, stdout, stderr io.Writer) error {
	logs := logging.NewDeferred(stderr)
	var logger *slog.Logger
	if newLogger != nil {
		logger = newLogger(logs)
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := fetch(ctx, cfg, logger, stdout, openSinks); err != nil {
		logs.Discard()
		_ = output.WriteError(stderr, err)
		return err
	}
	_ = logs.Flush()
	return nil
}

func fetch(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer, sinks sinkOpener) error {
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var repo archive.Repository
	if cfg.ArchiveEnabled() {
		dbConn, r, err := openArchive(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer closeDB(dbConn, logger)
		repo = r
	}

	records, stats, err := pollution.NewCollector(client, openaq.CalgaryQuery, logger).Collect(ctx)
	if err != nil {
		return err
	}
	if stats.Dropped > 0 {
		logger.Debug("measurements without a matching sensor", "dropped", stats.Dropped)
	}

	if repo != nil {
		run := archive.NewRun(time.Now(), stats)
		if err := repo.SaveRun(ctx, run, records); err != nil {
			return err
		}
		logger.Info("run archived", "runID", run.ID)
	}

	if err := output.Emit(cfg.OutputPath, records, stdout); err != nil {
		return err
	}
	logger.Info("output written", "path", cfg.OutputPath, "records", len(records))

	open := sinks(ctx, cfg, logger)
	defer closeSinks(open, logger)
	publishAll(ctx, open, records, logger)

	return nil
}
