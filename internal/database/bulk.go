package database

import "fmt"

// BeginBulk relaxes durability for a large import: synchronous writes
// off, journals in memory. Crash-safety is gone until EndBulk; an
// interrupted import starts over.
func (d *Database) BeginBulk() error {
	pragmas := []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA store.journal_mode = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			return fmt.Errorf("entering bulk mode (%s): %w", p, err)
		}
	}
	return nil
}

// EndBulk restores the normal durability settings.
func (d *Database) EndBulk() error {
	pragmas := []string{
		"PRAGMA synchronous = FULL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA store.journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			return fmt.Errorf("leaving bulk mode (%s): %w", p, err)
		}
	}
	return nil
}
