package database

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"time"
)

// Migrations holds the embedded SQL files. The migrations package registers
// itself here from init; tests pass an fstest.MapFS to MigrateFS instead.
var Migrations fs.FS

// Migration is a pair of files named VERSION_name.up.sql and
// VERSION_name.down.sql, where VERSION is YYYYMMDD_HHMMSS. The down file
// is optional.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// Checksum fingerprints the up SQL so edits to an applied file show up in
// MigrationStatus.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpSQL))
	return hex.EncodeToString(sum[:])
}

// MigrationRecord is a row of schema_migrations. Modified is set by
// MigrationStatus when the file on disk no longer matches what was applied.
type MigrationRecord struct {
	Version   string
	Name      string
	Checksum  string
	AppliedAt time.Time
	Modified  bool
}

var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`

// Migrate applies the embedded migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return db.MigrateFS(ctx, Migrations)
}

// MigrateFS applies every pending migration at the root of fsys, oldest
// first, one transaction each. A failure leaves earlier migrations
// committed; running again resumes at the failed one.
func (db *DB) MigrateFS(ctx context.Context, fsys fs.FS) error {
	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		return err
	}
	for _, m := range pending {
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
				m.Version, m.Name, m.Checksum(), time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied migration. It is a no-op when
// nothing has been applied.
func (db *DB) Rollback(ctx context.Context, fsys fs.FS) error {
	applied, _, err := db.MigrationStatus(ctx, fsys)
	if err != nil || len(applied) == 0 {
		return err
	}
	latest := applied[len(applied)-1]

	all, err := loadMigrations(fsys)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == latest.Version })
	switch {
	case i < 0:
		return fmt.Errorf("migration %s is applied but its files are missing", latest.Version)
	case all[i].DownSQL == "":
		return fmt.Errorf("migration %s_%s has no down SQL", latest.Version, latest.Name)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, all[i].DownSQL); err != nil {
			return fmt.Errorf("reverting %s: %w", latest.Version, err)
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", latest.Version)
		return err
	})
}

// MigrationStatus lists applied migrations, oldest first, and the
// migrations in fsys that have not been applied.
func (db *DB) MigrationStatus(ctx context.Context, fsys fs.FS) (applied []MigrationRecord, pending []Migration, err error) {
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}
	if applied, err = db.appliedMigrations(ctx); err != nil {
		return nil, nil, err
	}
	all, err := loadMigrations(fsys)
	if err != nil {
		return nil, nil, err
	}

	byVersion := make(map[string]Migration, len(all))
	for _, m := range all {
		byVersion[m.Version] = m
	}
	for i, r := range applied {
		if m, ok := byVersion[r.Version]; ok {
			applied[i].Modified = m.Checksum() != r.Checksum
			delete(byVersion, r.Version)
		}
	}
	for _, m := range all {
		if _, ok := byVersion[m.Version]; ok {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, name, checksum, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var at string
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum, &at); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		if r.AppliedAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("migration %s: bad applied_at %q", r.Version, at)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// loadMigrations pairs the up and down files at the root of fsys. Files
// not following the naming scheme are ignored. A nil fsys has none.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		version, name, up, ok := parseMigrationFilename(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m, seen := byVersion[version]
		if !seen {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration %s: files disagree on name (%s, %s)", version, m.Name, name)
		}
		if up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	var errs []error
	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			errs = append(errs, fmt.Errorf("migration %s_%s has no up SQL", m.Version, m.Name))
			continue
		}
		out = append(out, *m)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename splits "20261001_090000_documents.up.sql" into
// version "20261001_090000", name "documents" and direction.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	m := migrationFile.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false, false
	}
	return m[1], m[2], m[3] == "up", true
}
