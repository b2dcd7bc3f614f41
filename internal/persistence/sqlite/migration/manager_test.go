package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestManagerRunAppliesPendingOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	source := fstest.MapFS{
		"001_create_a.sql": {Data: []byte("CREATE TABLE a (x TEXT);")},
		"002_create_b.sql": {Data: []byte("CREATE TABLE b (y TEXT);\nINSERT INTO b (y) VALUES ('seed');")},
	}
	manager := NewManager(db, source, nil)

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	var seeds int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM b`).Scan(&seeds); err != nil {
		t.Fatalf("count seeds: %v", err)
	}
	if seeds != 1 {
		t.Fatalf("expected migrations to run once, found %d seed rows", seeds)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestManagerRunRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	source := fstest.MapFS{
		"001_create_a.sql": {Data: []byte("CREATE TABLE a (x TEXT);")},
		"002_broken.sql":   {Data: []byte("CREATE TABLE c (z TEXT);\nINSERT INTO missing (z) VALUES (1);")},
	}

	err := NewManager(db, source, nil).Run(ctx)
	var migrationErr *MigrationError
	if !errors.As(err, &migrationErr) || migrationErr.Version != "002" {
		t.Fatalf("expected MigrationError for 002, got %v", err)
	}

	var tables int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'c'`).Scan(&tables); err != nil {
		t.Fatalf("inspect schema: %v", err)
	}
	if tables != 0 {
		t.Fatalf("expected failed migration to roll back")
	}
}

func TestManagerDetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	source := fstest.MapFS{"001_create_a.sql": {Data: []byte("CREATE TABLE a (x TEXT);")}}
	if err := NewManager(db, source, nil).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	source["001_create_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (x TEXT, y TEXT);")}
	if err := NewManager(db, source, nil).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestManagerRejectsSequenceGaps(t *testing.T) {
	source := fstest.MapFS{
		"001_a.sql": {Data: []byte("CREATE TABLE a (x TEXT);")},
		"003_c.sql": {Data: []byte("CREATE TABLE c (x TEXT);")},
	}
	if err := NewManager(openTestDB(t), source, nil).Run(context.Background()); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}
