// Package store persists registry records and import batches in SQLite.
// Each registry gets its own table derived from its descriptor; conflict
// resolution is upsert on the natural key.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sheria-labs/registries/pkg/schema"
)

// Store wraps the SQLite database shared by all registries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the
// import_batches table exists. Registry tables are created on demand by
// EnsureRegistry.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS import_batches (
		id          TEXT PRIMARY KEY,
		registry    TEXT NOT NULL,
		file_name   TEXT NOT NULL,
		status      TEXT NOT NULL,
		imported    INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		duplicates  INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create import_batches table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close ferme la connexion SQLite.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureRegistry creates the table for one registry if missing: one TEXT
// column per declared field, a REAL companion column per number field, and
// the fixed provenance/quality metadata columns the review UI reads.
func (s *Store) EnsureRegistry(d *schema.Descriptor) error {
	var cols strings.Builder
	for i := range d.Fields {
		f := &d.Fields[i]
		fmt.Fprintf(&cols, "\t%s TEXT,\n", f.Name)
		if f.Kind == schema.KindNumber {
			fmt.Fprintf(&cols, "\t%s_value REAL,\n", f.Name)
		}
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	natural_key TEXT PRIMARY KEY,
%s	extras             TEXT,
	data_quality_score INTEGER NOT NULL DEFAULT 0,
	missing_fields     TEXT,
	import_warnings    TEXT,
	file_source        TEXT,
	data_source        TEXT,
	import_batch_id    TEXT,
	search_text        TEXT,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
)`, d.Table, cols.String())

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create table %s: %w", d.Table, err)
	}
	idx := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_batch ON %s(import_batch_id)`,
		d.Table, d.Table)
	if _, err := s.db.Exec(idx); err != nil {
		return fmt.Errorf("create index on %s: %w", d.Table, err)
	}
	return nil
}
