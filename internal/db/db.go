package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasfepe/5G-PollutionMap/internal/config"
)

// Open opens the archive database at cfg.SQLitePath. At debug level every
// statement is logged through the SQL logging connector.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := BuildDSN(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	db := sql.OpenDB(&loggingConnector{
		dsn:    dsn,
		logger: logger,
		quiet:  cfg.LogLevel > slog.LevelDebug,
	})

	// SQLite is happiest with a single writer.
	if cfg.SQLiteMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.SQLiteMaxOpenConns)
	}
	if cfg.SQLiteMaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.SQLiteMaxIdleConns)
	}
	if cfg.SQLiteConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.SQLiteConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// BuildDSN turns a file path (or an existing "file:" URI) into a go-sqlite3
// DSN with foreign keys, a busy timeout and WAL enabled. The parent directory
// of a plain path is created if missing.
func BuildDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
