package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanOrdersByNumericVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
		"002_create_table.sql":   {Data: []byte("-- Description: Create table t\nCREATE TABLE t (a TEXT);")},
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE s (a TEXT);")},
		"README.md":              {Data: []byte("ignored")},
	}

	migrations, err := Scan(fsys)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
	want := []string{"001", "002", "010"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
	if migrations[0].Description != "initial schema" {
		t.Errorf("expected description from file name, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "Create table t" {
		t.Errorf("expected description from comment, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Errorf("expected distinct checksums")
	}
}

func TestScanRejectsInvalidFiles(t *testing.T) {
	tests := map[string]struct {
		fsys fstest.MapFS
		want error
	}{
		"bad name": {
			fsys: fstest.MapFS{"initial.sql": {Data: []byte("CREATE TABLE t (a TEXT);")}},
			want: ErrInvalidMigrationFile,
		},
		"comment only": {
			fsys: fstest.MapFS{"001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want: ErrInvalidMigrationFile,
		},
		"duplicate version": {
			fsys: fstest.MapFS{
				"001_a.sql": {Data: []byte("CREATE TABLE a (x TEXT);")},
				"001_b.sql": {Data: []byte("CREATE TABLE b (x TEXT);")},
			},
			want: ErrDuplicateVersion,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Scan(tt.fsys)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSplitStatementsDropsComments(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x TEXT);\n\n-- second\nCREATE INDEX i ON a(x);\n"
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE a (x TEXT)" {
		t.Errorf("unexpected first statement %q", statements[0])
	}
}
