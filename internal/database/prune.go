package database

import (
	"context"
	"fmt"

	"github.com/hackia/lys-sub000/internal/engine"
)

// Prune deletes commits older than cutoff, computes the set of tree
// hashes still reachable from the survivors, and drops every tree node
// and blob outside it. The deletes run in one transaction; both database
// files are vacuumed afterwards.
func (d *Database) Prune(ctx context.Context, cutoff string) (*engine.PruneReport, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting prune transaction: %w", err)
	}
	defer tx.Rollback()

	report := &engine.PruneReport{}

	res, err := tx.Exec("DELETE FROM commits WHERE timestamp < ?", cutoff)
	if err != nil {
		return nil, fmt.Errorf("deleting expired commits: %w", err)
	}
	report.Commits, _ = res.RowsAffected()

	if _, err := tx.Exec(
		"CREATE TEMP TABLE live_hashes (hash TEXT PRIMARY KEY) WITHOUT ROWID",
	); err != nil {
		return nil, fmt.Errorf("creating live set: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO live_hashes SELECT DISTINCT tree_hash FROM commits",
	); err != nil {
		return nil, fmt.Errorf("seeding live set: %w", err)
	}

	// Expand the live set to a fixpoint: each pass pulls in the children
	// of every hash already known live.
	prev := int64(-1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var count int64
		if err := tx.QueryRow("SELECT COUNT(*) FROM live_hashes").Scan(&count); err != nil {
			return nil, fmt.Errorf("sizing live set: %w", err)
		}
		if count == prev {
			break
		}
		prev = count

		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO live_hashes
			 SELECT tn.hash FROM tree_nodes tn
			 JOIN live_hashes lh ON lh.hash = tn.parent_tree_hash`,
		); err != nil {
			return nil, fmt.Errorf("expanding live set: %w", err)
		}
	}

	res, err = tx.Exec(
		"DELETE FROM tree_nodes WHERE parent_tree_hash NOT IN (SELECT hash FROM live_hashes)",
	)
	if err != nil {
		return nil, fmt.Errorf("deleting dead tree nodes: %w", err)
	}
	report.TreeNodes, _ = res.RowsAffected()

	res, err = tx.Exec(
		"DELETE FROM store.blobs WHERE hash NOT IN (SELECT hash FROM live_hashes)",
	)
	if err != nil {
		return nil, fmt.Errorf("deleting dead blobs: %w", err)
	}
	report.Blobs, _ = res.RowsAffected()

	if _, err := tx.Exec("DROP TABLE live_hashes"); err != nil {
		return nil, fmt.Errorf("dropping live set: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing prune: %w", err)
	}

	if err := d.vacuum(ctx); err != nil {
		return nil, err
	}
	return report, nil
}

// PruneOrphans deletes blobs the tree index does not reference, leaving
// commits and tree nodes untouched.
func (d *Database) PruneOrphans(ctx context.Context) (*engine.PruneReport, error) {
	res, err := d.db.ExecContext(ctx,
		"DELETE FROM store.blobs WHERE hash NOT IN (SELECT hash FROM tree_nodes)",
	)
	if err != nil {
		return nil, fmt.Errorf("deleting orphan blobs: %w", err)
	}

	report := &engine.PruneReport{}
	report.Blobs, _ = res.RowsAffected()

	if err := d.vacuum(ctx); err != nil {
		return nil, err
	}
	return report, nil
}

// vacuum reclaims space in both database files. VACUUM cannot run inside
// a transaction, so this always follows the commit of the deletes.
func (d *Database) vacuum(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuuming hot database: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, "VACUUM store"); err != nil {
		return fmt.Errorf("vacuuming store database: %w", err)
	}
	return nil
}
