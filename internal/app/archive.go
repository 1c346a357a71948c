package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lucasfepe/5G-PollutionMap/internal/archive"
	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/db"
	"github.com/lucasfepe/5G-PollutionMap/internal/migrate"
)

var errArchiveDisabled = errors.New("SQLITE_PATH is required")

// openArchive opens the database and brings its schema up to date.
func openArchive(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, archive.Repository, error) {
	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Run(ctx, dbConn); err != nil {
		_ = db.Close(dbConn)
		return nil, nil, err
	}
	return dbConn, archive.NewRepository(dbConn), nil
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := db.Close(dbConn); err != nil {
		logger.Error("db close", "error", err)
	}
}

// Migrate applies pending archive migrations and exits.
func Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if !cfg.ArchiveEnabled() {
		return errArchiveDisabled
	}
	dbConn, _, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closeDB(dbConn, logger)
	logger.Info("migrations applied", "sqlitePath", cfg.SQLitePath)
	return nil
}
