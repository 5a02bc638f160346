package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY) STRICT;")},
		"20260101_000000_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"20260102_000000_gadgets.up.sql":   {Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY) STRICT;")},
		"README.md":                        {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master: %v", err)
	}
	return count == 1
}

func TestMigrateFS(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.MigrateFS(ctx, testMigrations()); err != nil {
		t.Fatalf("MigrateFS() error = %v", err)
	}
	if !tableExists(t, db, "widgets") || !tableExists(t, db, "gadgets") {
		t.Fatal("expected widgets and gadgets tables")
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}

	// Second run is a no-op.
	if err := db.MigrateFS(ctx, testMigrations()); err != nil {
		t.Fatalf("MigrateFS() second run error = %v", err)
	}
}

func TestRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20260101_000000_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY) STRICT;")},
		"20260101_000000_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	}
	if err := db.MigrateFS(ctx, fsys); err != nil {
		t.Fatalf("MigrateFS() error = %v", err)
	}
	if err := db.Rollback(ctx, fsys); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets should be dropped after rollback")
	}

	// Nothing left to roll back.
	if err := db.Rollback(ctx, fsys); err != nil {
		t.Errorf("Rollback() on empty history error = %v", err)
	}
}

func TestRollback_NoDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20260102_000000_gadgets.up.sql": {Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY) STRICT;")},
	}
	if err := db.MigrateFS(ctx, fsys); err != nil {
		t.Fatalf("MigrateFS() error = %v", err)
	}
	if err := db.Rollback(ctx, fsys); err == nil {
		t.Error("Rollback() expected error for missing down SQL")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file    string
		version string
		name    string
		up      bool
		ok      bool
	}{
		{"20261001_090000_documents.up.sql", "20261001_090000", "documents", true, true},
		{"20261001_090000_documents.down.sql", "20261001_090000", "documents", false, true},
		{"20261001_090000_job_log.up.sql", "20261001_090000", "job_log", true, true},
		{"20261001.up.sql", "", "", false, false},
		{"20261001_090000_documents.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.file)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if version != tt.version || name != tt.name || up != tt.up {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)", version, name, up, tt.version, tt.name, tt.up)
			}
		})
	}
}

func TestMigrationStatus_DetectsEditedFile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	if err := db.MigrateFS(ctx, fsys); err != nil {
		t.Fatalf("MigrateFS() error = %v", err)
	}

	fsys["20260102_000000_gadgets.up.sql"] = &fstest.MapFile{
		Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY, label TEXT) STRICT;"),
	}
	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %d, want 2", len(applied))
	}
	if applied[0].Modified {
		t.Error("widgets reported as modified")
	}
	if !applied[1].Modified || applied[1].Name != "gadgets" {
		t.Errorf("gadgets record = %+v, want modified", applied[1])
	}
}

func TestLoadMigrations_MissingUp(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{
		"20260103_000000_orphan.down.sql": {Data: []byte("DROP TABLE orphan;")},
	})
	if err == nil {
		t.Fatal("loadMigrations() expected error for down-only migration")
	}
}
