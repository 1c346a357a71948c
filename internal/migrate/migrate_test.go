package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func countVersions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	return n
}

func TestRun_EmbeddedSchema(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, table := range []string{"runs", "records"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
	first := countVersions(t, db)
	if first == 0 {
		t.Fatal("no migrations recorded")
	}

	if err := Run(ctx, db); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := countVersions(t, db); got != first {
		t.Errorf("second Run recorded %d migrations, want %d (idempotent)", got, first)
	}
}

func TestRun_OrderAndSkip(t *testing.T) {
	db := openMemDB(t)
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte(`INSERT INTO log (step) VALUES ('second');`)},
		"m/0001_first.sql":  {Data: []byte(`CREATE TABLE log (step TEXT); INSERT INTO log (step) VALUES ('first');`)},
		"m/README.md":       {Data: []byte(`not a migration`)},
		"m/01_bad.sql":      {Data: []byte(`garbage`)},
	}

	if err := run(context.Background(), db, fsys, "m"); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows, err := db.Query(`SELECT step FROM log ORDER BY rowid`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var steps []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("scan: %v", err)
		}
		steps = append(steps, s)
	}
	if len(steps) != 2 || steps[0] != "first" || steps[1] != "second" {
		t.Errorf("steps = %v, want [first second]", steps)
	}
	if got := countVersions(t, db); got != 2 {
		t.Errorf("recorded %d migrations, want 2", got)
	}
}

func TestRun_FailedMigrationRollsBack(t *testing.T) {
	db := openMemDB(t)
	fsys := fstest.MapFS{
		"m/0001_ok.sql":     {Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"m/0002_broken.sql": {Data: []byte(`CREATE TABLE half (id INTEGER); THIS IS NOT SQL;`)},
	}

	if err := run(context.Background(), db, fsys, "m"); err == nil {
		t.Fatal("run error = nil, want non-nil")
	}
	if got := countVersions(t, db); got != 1 {
		t.Errorf("recorded %d migrations, want 1", got)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'`).Scan(&n); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if n != 0 {
		t.Error("table from failed migration was not rolled back")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		ok      bool
	}{
		{in: "0001_schema.sql", version: "0001", name: "schema", ok: true},
		{in: "0010_add_index.sql", version: "0010", name: "add_index", ok: true},
		{in: "1_schema.sql"},
		{in: "0001_schema.txt"},
		{in: "0001_.sql"},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if v != tt.version || n != tt.name || ok != tt.ok {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, v, n, ok, tt.version, tt.name, tt.ok)
		}
	}
}
