package migrations_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hackia/lys-sub000/internal/database/migrations"
)

func TestMigrateHot(t *testing.T) {
	db := openTestDB(t)

	if err := migrations.MigrateHot(db); err != nil {
		t.Fatalf("MigrateHot() error = %v", err)
	}

	tables := []string{
		"commits", "tree_nodes", "branches", "tags",
		"manifest", "operations_log", "config", "schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}

	// The seed row makes a fresh repository start on main.
	var branch string
	err := db.QueryRow("SELECT value FROM config WHERE key = 'current_branch'").Scan(&branch)
	if err != nil {
		t.Fatalf("reading current_branch seed: %v", err)
	}
	if branch != "main" {
		t.Errorf("current_branch seed = %q, want main", branch)
	}
}

func TestMigrateStore(t *testing.T) {
	db := openTestDB(t)

	if err := migrations.MigrateStore(db); err != nil {
		t.Fatalf("MigrateStore() error = %v", err)
	}

	for _, table := range []string{"blobs", "assets", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestMigrateHotIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := migrations.MigrateHot(db); err != nil {
		t.Fatalf("first MigrateHot() error = %v", err)
	}
	if err := migrations.MigrateHot(db); err != nil {
		t.Errorf("second MigrateHot() error = %v", err)
	}
}

func TestVersions(t *testing.T) {
	db := openTestDB(t)

	v, dirty, err := migrations.HotVersion(db)
	if err != nil {
		t.Fatalf("HotVersion() on fresh database error = %v", err)
	}
	if v != 0 || dirty {
		t.Errorf("fresh database version = (%d, %v), want (0, false)", v, dirty)
	}

	if err := migrations.MigrateHot(db); err != nil {
		t.Fatalf("MigrateHot() error = %v", err)
	}
	v, dirty, err = migrations.HotVersion(db)
	if err != nil {
		t.Fatalf("HotVersion() error = %v", err)
	}
	if v != 1 || dirty {
		t.Errorf("migrated database version = (%d, %v), want (1, false)", v, dirty)
	}

	store := openTestDB(t)
	if err := migrations.MigrateStore(store); err != nil {
		t.Fatalf("MigrateStore() error = %v", err)
	}
	v, dirty, err = migrations.StoreVersion(store)
	if err != nil {
		t.Fatalf("StoreVersion() error = %v", err)
	}
	if v != 1 || dirty {
		t.Errorf("migrated store version = (%d, %v), want (1, false)", v, dirty)
	}
}

func TestManifestRowsFollowTheirCommit(t *testing.T) {
	db := openTestDB(t)
	if err := migrations.MigrateHot(db); err != nil {
		t.Fatalf("MigrateHot() error = %v", err)
	}

	res, err := db.Exec(`INSERT INTO commits (hash, tree_hash, author, message, timestamp)
		VALUES ('c1', 't1', 'a', 'm', '2024-01-15T10:30:00Z')`)
	if err != nil {
		t.Fatalf("inserting commit: %v", err)
	}
	commitID, _ := res.LastInsertId()

	_, err = db.Exec("INSERT INTO manifest (commit_id, asset_id, blob_id, file_path) VALUES (?, 1, 1, 'a.txt')", commitID)
	if err != nil {
		t.Fatalf("inserting manifest row: %v", err)
	}

	if _, err := db.Exec("DELETE FROM commits WHERE id = ?", commitID); err != nil {
		t.Fatalf("deleting commit: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM manifest").Scan(&n); err != nil {
		t.Fatalf("counting manifest rows: %v", err)
	}
	if n != 0 {
		t.Errorf("manifest has %d rows after commit deletion, want 0", n)
	}
}

func TestUniqueConstraints(t *testing.T) {
	t.Run("commit hashes", func(t *testing.T) {
		db := openTestDB(t)
		if err := migrations.MigrateHot(db); err != nil {
			t.Fatalf("MigrateHot() error = %v", err)
		}

		const insert = `INSERT INTO commits (hash, tree_hash, author, message, timestamp)
			VALUES ('dup', 't1', 'a', 'm', '2024-01-15T10:30:00Z')`
		if _, err := db.Exec(insert); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		if _, err := db.Exec(insert); err == nil {
			t.Error("duplicate commit hash was accepted")
		}
	})

	t.Run("blob hashes", func(t *testing.T) {
		db := openTestDB(t)
		if err := migrations.MigrateStore(db); err != nil {
			t.Fatalf("MigrateStore() error = %v", err)
		}

		const insert = "INSERT INTO blobs (hash, content) VALUES ('dup', x'00')"
		if _, err := db.Exec(insert); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		if _, err := db.Exec(insert); err == nil {
			t.Error("duplicate blob hash was accepted")
		}
	})
}

// openTestDB opens an in-memory SQLite database with foreign keys on.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enabling foreign keys: %v", err)
	}
	return db
}
