// Package database implements the engine's persistence on SQLite. Each
// season of a year gets its own hot database; blobs and assets live in a
// shared store database attached to every connection; the most recent
// previous season is attached read-only so branch heads survive the
// rollover.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hackia/lys-sub000/internal/database/migrations"
	"github.com/hackia/lys-sub000/internal/engine"
)

// shellEnv, when set, marks a shell-completion invocation: paths are
// resolved but season directories are not created.
const shellEnv = "LYS_SHELL"

// Database is the SQLite-backed implementation of engine.Database.
type Database struct {
	db        *sql.DB
	dir       string
	hotPath   string
	storePath string
	oldPath   string
}

var _ engine.Database = (*Database)(nil)

// Open prepares the seasonal database stack under dir (the engine
// directory, usually <worktree>/.lys): it resolves the hot database for
// now, migrates both schemas, attaches the store read-write and the
// previous season read-only, and folds any legacy inline blob tables
// into the store.
func Open(dir string, now time.Time) (*Database, error) {
	hotPath := HotPath(dir, now)
	storePath := StorePath(dir)

	if os.Getenv(shellEnv) == "" {
		if err := os.MkdirAll(filepath.Dir(hotPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating season directory: %w", err)
		}
	}

	if err := migrateStore(storePath); err != nil {
		return nil, err
	}

	db, err := openConnection(hotPath)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateHot(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating hot database: %w", err)
	}

	d := &Database{db: db, dir: dir, hotPath: hotPath, storePath: storePath}

	if err := d.attachStore(); err != nil {
		db.Close()
		return nil, err
	}
	if old := previousSeasonPath(dir, hotPath); old != "" {
		if err := d.attachOld(old); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := d.migrateLegacyBlobs(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// openConnection opens one SQLite file with the engine pragmas applied.
// The pool is capped at a single connection because attached databases
// only exist on the connection that ran ATTACH.
func openConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -8192",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q to %s: %w", p, path, err)
		}
	}
	return db, nil
}

// migrateStore opens the store on its own short-lived connection to run
// schema migrations before it is attached anywhere.
func migrateStore(path string) error {
	db, err := openConnection(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.MigrateStore(db); err != nil {
		return fmt.Errorf("migrating store database: %w", err)
	}
	return nil
}

func (d *Database) attachStore() error {
	if _, err := d.db.Exec("ATTACH DATABASE ? AS store", d.storePath); err != nil {
		return fmt.Errorf("attaching store database: %w", err)
	}
	if _, err := d.db.Exec("PRAGMA store.journal_mode = WAL"); err != nil {
		return fmt.Errorf("enabling WAL on store: %w", err)
	}
	return nil
}

func (d *Database) attachOld(path string) error {
	if _, err := d.db.Exec("ATTACH DATABASE ? AS old", path); err != nil {
		return fmt.Errorf("attaching previous season %s: %w", path, err)
	}
	// The previous season is history; refuse writes to it outright.
	if _, err := d.db.Exec("PRAGMA old.query_only = ON"); err != nil {
		return fmt.Errorf("marking previous season read-only: %w", err)
	}
	d.oldPath = path
	return nil
}

// hasOld reports whether a previous-season database is attached.
func (d *Database) hasOld() bool {
	return d.oldPath != ""
}

// migrateLegacyBlobs folds pre-split blob and asset tables out of the
// hot database into the shared store, remapping manifest ids along the
// way, then drops the legacy tables.
func (d *Database) migrateLegacyBlobs() error {
	var name string
	err := d.db.QueryRow(
		"SELECT name FROM main.sqlite_master WHERE type = 'table' AND name = 'blobs'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspecting legacy schema: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("starting legacy migration: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		`INSERT OR IGNORE INTO store.blobs (hash, content, size, mime_type)
		 SELECT hash, content, size, mime_type FROM main.blobs`,
		`UPDATE manifest SET blob_id = (
			SELECT sb.id FROM store.blobs sb
			WHERE sb.hash = (SELECT lb.hash FROM main.blobs lb WHERE lb.id = manifest.blob_id)
		 ) WHERE blob_id IN (SELECT id FROM main.blobs)`,
		`DROP TABLE main.blobs`,
	}
	if d.tableExists(tx, "assets") {
		steps = append(steps,
			`INSERT OR IGNORE INTO store.assets (uuid, created_at)
			 SELECT uuid, created_at FROM main.assets`,
			`UPDATE manifest SET asset_id = (
				SELECT sa.id FROM store.assets sa
				WHERE sa.uuid = (SELECT la.uuid FROM main.assets la WHERE la.id = manifest.asset_id)
			 ) WHERE asset_id IN (SELECT id FROM main.assets)`,
			`DROP TABLE main.assets`,
		)
	}

	for _, stmt := range steps {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrating legacy blobs: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing legacy migration: %w", err)
	}
	return nil
}

func (d *Database) tableExists(tx *sql.Tx, table string) bool {
	var name string
	err := tx.QueryRow(
		"SELECT name FROM main.sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	return err == nil
}

// HotPath returns the seasonal database file backing this handle.
func (d *Database) HotPath() string {
	return d.hotPath
}

// OldPath returns the attached previous-season file, or "".
func (d *Database) OldPath() string {
	return d.oldPath
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// sanitizeHexPrefix keeps only characters that can appear in a hash so
// user-supplied prefixes cannot smuggle LIKE wildcards.
func sanitizeHexPrefix(prefix string) string {
	prefix = strings.ToLower(prefix)
	for _, c := range prefix {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ""
		}
	}
	return prefix
}
