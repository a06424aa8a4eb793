package database

import (
	"context"
	"database/sql"
	"fmt"
	"path"

	"github.com/hackia/lys-sub000/internal/engine"
)

// insertTreeNodesTx stores Merkle edges. Rows are content-addressed by
// (parent, name), so re-inserting an already-indexed subtree is a no-op.
func insertTreeNodesTx(tx *sql.Tx, nodes []engine.TreeNode) error {
	if len(nodes) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO tree_nodes (parent_tree_hash, name, hash, mode, size) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing tree insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.Exec(n.Parent, n.Name, n.Hash, n.Mode, n.Size); err != nil {
			return fmt.Errorf("storing tree node %s/%s: %w", n.Parent, n.Name, err)
		}
	}
	return nil
}

// FlattenTree resolves a tree hash to a path-keyed map of every node
// below it, directories included.
func (d *Database) FlattenTree(treeHash string) (map[string]engine.TreeEntry, error) {
	flat := make(map[string]engine.TreeEntry)
	visited := make(map[string]bool)

	type frame struct {
		hash   string
		prefix string
	}
	queue := []frame{{hash: treeHash}}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if visited[f.hash] {
			continue
		}
		visited[f.hash] = true

		rows, err := d.db.Query(
			"SELECT name, hash, mode, size FROM tree_nodes WHERE parent_tree_hash = ?", f.hash,
		)
		if err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", f.hash, err)
		}
		for rows.Next() {
			var (
				name, hash string
				mode, size int64
			)
			if err := rows.Scan(&name, &hash, &mode, &size); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning tree node: %w", err)
			}
			full := name
			if f.prefix != "" {
				full = path.Join(f.prefix, name)
			}
			flat[full] = engine.TreeEntry{Hash: hash, Mode: mode, Size: size}
			if engine.IsDirMode(mode) {
				queue = append(queue, frame{hash: hash, prefix: full})
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating children of %s: %w", f.hash, err)
		}
		rows.Close()
	}

	return flat, nil
}

// TreeFileRefs lists every distinct (hash, mode) pair the tree index
// references.
func (d *Database) TreeFileRefs(ctx context.Context) ([]engine.TreeRef, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT DISTINCT hash, mode FROM tree_nodes")
	if err != nil {
		return nil, fmt.Errorf("listing tree references: %w", err)
	}
	defer rows.Close()

	refs := make([]engine.TreeRef, 0)
	for rows.Next() {
		var ref engine.TreeRef
		if err := rows.Scan(&ref.Hash, &ref.Mode); err != nil {
			return nil, fmt.Errorf("scanning tree reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tree references: %w", err)
	}
	return refs, nil
}

// InsertTreeNodes stores prebuilt Merkle edges outside a commit, used by
// importers that index trees ahead of their commits.
func (d *Database) InsertTreeNodes(nodes []engine.TreeNode) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("starting tree batch: %w", err)
	}
	defer tx.Rollback()

	if err := insertTreeNodesTx(tx, nodes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tree batch: %w", err)
	}
	return nil
}
