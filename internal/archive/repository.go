package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/insert-record.sql
var insertRecordSQL string

//go:embed sql/list-runs.sql
var listRunsSQL string

//go:embed sql/get-run-records.sql
var getRunRecordsSQL string

// ErrNoRuns is returned by LatestRun on an empty archive.
var ErrNoRuns = errors.New("archive: no runs recorded")

// fetchedAtLayout is fixed width so that text order in SQL is time order.
const fetchedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run describes one archived collection.
type Run struct {
	ID           string    `json:"id"`
	FetchedAt    time.Time `json:"fetchedAt"`
	Locations    int       `json:"locations"`
	Measurements int       `json:"measurements"`
	Records      int       `json:"records"`
	Dropped      int       `json:"dropped"`
}

// NewRun stamps a fresh run id for the given collection stats.
func NewRun(fetchedAt time.Time, stats pollution.Stats) Run {
	return Run{
		ID:           uuid.NewString(),
		FetchedAt:    fetchedAt.UTC(),
		Locations:    stats.Locations,
		Measurements: stats.Measurements,
		Records:      stats.Records,
		Dropped:      stats.Dropped,
	}
}

type Repository interface {
	SaveRun(ctx context.Context, run Run, records []pollution.Record) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LatestRun(ctx context.Context) (Run, []pollution.Record, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

// SaveRun stores the run and its records atomically.
func (r *repositoryImpl) SaveRun(ctx context.Context, run Run, records []pollution.Record) error {
	if run.ID == "" {
		return errors.New("archive: run id is required")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback archive run", "run_id", run.ID, "error", err)
		}
	}()

	_, err = tx.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.FetchedAt.UTC().Format(fetchedAtLayout),
		run.Locations,
		run.Measurements,
		run.Records,
		run.Dropped,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("prepare insert record: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Error("close insert record stmt", "error", err)
		}
	}()

	for i, rec := range records {
		_, err := stmt.ExecContext(ctx, run.ID, i, rec.ID, rec.Name, rec.Lat, rec.Lon, rec.Pollutant, rec.Value, rec.Unit)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (r *repositoryImpl) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close runs rows", "error", err)
		}
	}()

	out := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LatestRun returns the newest run with its records in their original order.
func (r *repositoryImpl) LatestRun(ctx context.Context) (Run, []pollution.Record, error) {
	runs, err := r.ListRuns(ctx, 1)
	if err != nil {
		return Run{}, nil, err
	}
	if len(runs) == 0 {
		return Run{}, nil, ErrNoRuns
	}
	run := runs[0]

	rows, err := r.db.QueryContext(ctx, getRunRecordsSQL, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close records rows", "error", err)
		}
	}()

	records := make([]pollution.Record, 0, run.Records)
	for rows.Next() {
		var rec pollution.Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Lat, &rec.Lon, &rec.Pollutant, &rec.Value, &rec.Unit); err != nil {
			return Run{}, nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, err
	}
	return run, records, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var ts string
	if err := rows.Scan(&run.ID, &ts, &run.Locations, &run.Measurements, &run.Records, &run.Dropped); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Run{}, fmt.Errorf("parse fetched_at %q: %w", ts, err)
	}
	run.FetchedAt = t
	return run, nil
}
