// Package migrations owns the embedded schema for both engine databases:
// the seasonal hot database and the shared object store. Every schema
// change lands here as a numbered migration pair; nothing else in the
// codebase issues DDL.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/hot/*.sql
var hotFiles embed.FS

//go:embed files/store/*.sql
var storeFiles embed.FS

// MigrateHot brings a seasonal database up to the current schema.
func MigrateHot(db *sql.DB) error {
	return run(db, hotFiles, "files/hot")
}

// MigrateStore brings the object store database up to the current schema.
func MigrateStore(db *sql.DB) error {
	return run(db, storeFiles, "files/store")
}

func run(db *sql.DB, files embed.FS, dir string) error {
	source, err := iofs.New(files, dir)
	if err != nil {
		return fmt.Errorf("loading embedded migrations from %s: %w", dir, err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("assembling migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// HotVersion reports the schema state of a seasonal database. A database
// no migration has touched yet reports version 0.
func HotVersion(db *sql.DB) (uint, bool, error) {
	return version(db, hotFiles, "files/hot")
}

// StoreVersion reports the schema state of an object store database.
func StoreVersion(db *sql.DB) (uint, bool, error) {
	return version(db, storeFiles, "files/store")
}

func version(db *sql.DB, files embed.FS, dir string) (uint, bool, error) {
	source, err := iofs.New(files, dir)
	if err != nil {
		return 0, false, fmt.Errorf("loading embedded migrations from %s: %w", dir, err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return 0, false, fmt.Errorf("assembling migrator: %w", err)
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return v, dirty, nil
}
