package archive

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lucasfepe/5G-PollutionMap/internal/migrate"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	if err := migrate.Run(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var sampleRecords = []pollution.Record{
	{ID: 8118, Name: "Calgary Central", Lat: 51.0472, Lon: -114.0592, Pollutant: "PM2.5", Value: 12.3, Unit: "µg/m³"},
	{ID: 8118, Name: "Calgary Central", Lat: 51.0472, Lon: -114.0592, Pollutant: "O₃", Value: 0.031, Unit: "ppm"},
	{ID: 9001, Name: "Varsity", Lat: 51.08, Lon: -114.14, Pollutant: "PM2.5", Value: 4, Unit: "µg/m³"},
}

func TestNewRun(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("MST", -7*3600))
	run := NewRun(ts, pollution.Stats{Locations: 2, Measurements: 5, Records: 3, Dropped: 2})
	if run.ID == "" {
		t.Error("run id is empty")
	}
	if run.FetchedAt.Location() != time.UTC || !run.FetchedAt.Equal(ts) {
		t.Errorf("FetchedAt = %v, want %v in UTC", run.FetchedAt, ts)
	}
	if run.Locations != 2 || run.Measurements != 5 || run.Records != 3 || run.Dropped != 2 {
		t.Errorf("run = %+v", run)
	}
	if other := NewRun(ts, pollution.Stats{}); other.ID == run.ID {
		t.Error("NewRun reused an id")
	}
}

func TestLatestRun_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	if _, _, err := repo.LatestRun(context.Background()); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("LatestRun error = %v, want ErrNoRuns", err)
	}
	runs, err := repo.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("ListRuns = %#v, want empty non-nil", runs)
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	older := NewRun(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), pollution.Stats{Records: 1})
	if err := repo.SaveRun(ctx, older, sampleRecords[:1]); err != nil {
		t.Fatalf("SaveRun older: %v", err)
	}
	newer := NewRun(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), pollution.Stats{Locations: 2, Measurements: 4, Records: 3, Dropped: 1})
	if err := repo.SaveRun(ctx, newer, sampleRecords); err != nil {
		t.Fatalf("SaveRun newer: %v", err)
	}

	run, records, err := repo.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.ID != newer.ID || !run.FetchedAt.Equal(newer.FetchedAt) || run.Dropped != 1 {
		t.Errorf("latest run = %+v, want %+v", run, newer)
	}
	if len(records) != len(sampleRecords) {
		t.Fatalf("got %d records, want %d", len(records), len(sampleRecords))
	}
	for i := range records {
		if records[i] != sampleRecords[i] {
			t.Errorf("records[%d] = %+v, want %+v", i, records[i], sampleRecords[i])
		}
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Errorf("ListRuns order = %+v", runs)
	}

	runs, err = repo.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1): %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(runs))
	}
}

func TestSaveRun_EmptyRecords(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	run := NewRun(time.Now(), pollution.Stats{})
	if err := repo.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, records, err := repo.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if got.ID != run.ID || len(records) != 0 {
		t.Errorf("LatestRun = %+v with %d records", got, len(records))
	}
}

func TestSaveRun_DuplicateIDIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	run := NewRun(time.Now(), pollution.Stats{})
	if err := repo.SaveRun(ctx, run, sampleRecords[:1]); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := repo.SaveRun(ctx, run, sampleRecords); err == nil {
		t.Fatal("SaveRun with duplicate id: error = nil, want non-nil")
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM records WHERE run_id = ?`, run.ID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("records for run = %d, want 1 (failed save must not leave rows)", n)
	}
}

func TestSaveRun_RequiresID(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	if err := repo.SaveRun(context.Background(), Run{}, nil); err == nil {
		t.Fatal("SaveRun without id: error = nil, want non-nil")
	}
}

func TestListRuns_OrdersWithinOneSecond(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	later := NewRun(base.Add(500*time.Millisecond), pollution.Stats{})
	onTheSecond := NewRun(base, pollution.Stats{})

	for _, run := range []Run{later, onTheSecond} {
		if err := repo.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != later.ID {
		t.Fatalf("ListRuns order = %+v, want %s first", runs, later.ID)
	}
	if !runs[1].FetchedAt.Equal(base) {
		t.Errorf("FetchedAt = %v, want %v", runs[1].FetchedAt, base)
	}
}

func TestFixedWidthMigration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Rows written before fetched_at was padded.
	for id, ts := range map[string]string{
		"a": "2025-01-02T12:00:00Z",
		"b": "2025-01-02T12:00:00.5Z",
	} {
		if _, err := db.ExecContext(ctx, insertRunSQL, id, ts, 0, 0, 0, 0); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	m, err := os.ReadFile("../migrate/sql/0003_runs_fixed_width_fetched_at.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := db.ExecContext(ctx, string(m)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	runs, err := NewRepository(db).ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "b" || runs[1].ID != "a" {
		t.Fatalf("ListRuns = %+v, want b then a", runs)
	}
	want := time.Date(2025, 1, 2, 12, 0, 0, 500_000_000, time.UTC)
	if !runs[0].FetchedAt.Equal(want) {
		t.Errorf("FetchedAt = %v, want %v", runs[0].FetchedAt, want)
	}
}
