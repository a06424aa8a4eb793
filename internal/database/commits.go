package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hackia/lys-sub000/internal/engine"
)

const commitColumns = "id, hash, parent_hash, tree_hash, author, message, timestamp, signature"

func scanCommit(row interface{ Scan(...any) error }) (*engine.Commit, error) {
	var c engine.Commit
	err := row.Scan(&c.ID, &c.Hash, &c.ParentHash, &c.TreeHash, &c.Author, &c.Message, &c.Timestamp, &c.Signature)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning commit: %w", err)
	}
	return &c, nil
}

// ApplyCommit persists one commit in a single transaction: blobs and
// assets into the store, tree nodes, the commit row, its manifest, and
// the branch head. Nothing is visible until the transaction commits.
func (d *Database) ApplyCommit(ctx context.Context, plan *engine.CommitPlan) (*engine.CommitResult, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting commit transaction: %w", err)
	}
	defer tx.Rollback()

	result := &engine.CommitResult{AssetIDs: make(map[string]int64, len(plan.Files))}

	type resolved struct {
		file    engine.PlannedFile
		blobID  int64
		assetID int64
	}
	files := make([]resolved, len(plan.Files))
	for i, f := range plan.Files {
		blobID, created, err := ensureBlobTx(tx, f.Path, f.Hash, f.Size, plan.Content)
		if err != nil {
			return nil, err
		}
		if created {
			result.NewBlobs++
		}

		assetID := f.AssetID
		if assetID == 0 {
			assetID, err = createAssetTx(tx, f.AssetUUID, plan.Timestamp)
			if err != nil {
				return nil, err
			}
		}
		files[i] = resolved{file: f, blobID: blobID, assetID: assetID}
		result.AssetIDs[f.Path] = assetID
	}

	if err := insertTreeNodesTx(tx, plan.Nodes); err != nil {
		return nil, err
	}

	res, err := tx.Exec(
		`INSERT INTO commits (hash, parent_hash, tree_hash, author, message, timestamp, signature)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		plan.Hash, plan.ParentHash, plan.TreeHash, plan.Author, plan.Message, plan.Timestamp, plan.Signature,
	)
	if err != nil {
		return nil, fmt.Errorf("storing commit %s: %w", plan.Hash, err)
	}
	commitID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading commit id: %w", err)
	}

	manifestStmt, err := tx.Prepare(
		"INSERT INTO manifest (commit_id, asset_id, blob_id, file_path, permissions) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return nil, fmt.Errorf("preparing manifest insert: %w", err)
	}
	defer manifestStmt.Close()
	for _, r := range files {
		perms := r.file.Mode
		if perms == 0 {
			perms = engine.DefaultFileMode
		}
		if _, err := manifestStmt.Exec(commitID, r.assetID, r.blobID, r.file.Path, perms); err != nil {
			return nil, fmt.Errorf("storing manifest row for %s: %w", r.file.Path, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO branches (name, head_commit_id) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET head_commit_id = excluded.head_commit_id`,
		plan.Branch, commitID,
	); err != nil {
		return nil, fmt.Errorf("moving branch %s: %w", plan.Branch, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	result.CommitID = commitID
	result.Hash = plan.Hash
	return result, nil
}

// BranchHead resolves a branch to its head commit. When the hot database
// has no such branch, the attached previous season is consulted and the
// result is marked historical.
func (d *Database) BranchHead(name string) (*engine.HeadInfo, error) {
	var info engine.HeadInfo
	err := d.db.QueryRow(
		`SELECT c.id, c.hash, c.tree_hash FROM branches b
		 JOIN commits c ON c.id = b.head_commit_id WHERE b.name = ?`, name,
	).Scan(&info.CommitID, &info.Hash, &info.TreeHash)
	if err == nil {
		return &info, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("resolving branch %s: %w", name, err)
	}

	if !d.hasOld() {
		return nil, nil
	}
	err = d.db.QueryRow(
		`SELECT c.id, c.hash, c.tree_hash FROM old.branches b
		 JOIN old.commits c ON c.id = b.head_commit_id WHERE b.name = ?`, name,
	).Scan(&info.CommitID, &info.Hash, &info.TreeHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving branch %s in previous season: %w", name, err)
	}
	info.Historical = true
	return &info, nil
}

// CommitByID loads one commit from the hot database.
func (d *Database) CommitByID(id int64) (*engine.Commit, error) {
	return scanCommit(d.db.QueryRow(
		"SELECT "+commitColumns+" FROM commits WHERE id = ?", id,
	))
}

// CommitByHashPrefix resolves a hash prefix to a commit. Ambiguous
// prefixes resolve deterministically to the lexically smallest hash.
func (d *Database) CommitByHashPrefix(prefix string) (*engine.Commit, error) {
	prefix = sanitizeHexPrefix(prefix)
	if prefix == "" {
		return nil, nil
	}
	return scanCommit(d.db.QueryRow(
		"SELECT "+commitColumns+" FROM commits WHERE hash LIKE ? || '%' ORDER BY hash LIMIT 1", prefix,
	))
}

// AllCommits returns every hot commit in insertion order.
func (d *Database) AllCommits(ctx context.Context) ([]engine.Commit, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT "+commitColumns+" FROM commits ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	defer rows.Close()
	return collectCommits(rows)
}

// Commits returns a history page, newest first. With a branch filter the
// walk follows parent hashes from the branch head.
func (d *Database) Commits(q engine.LogQuery) ([]engine.Commit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		rows *sql.Rows
		err  error
	)
	if q.Branch == "" {
		rows, err = d.db.Query(
			"SELECT "+commitColumns+" FROM commits ORDER BY id DESC LIMIT ? OFFSET ?",
			limit, q.Offset,
		)
	} else {
		rows, err = d.db.Query(
			`WITH RECURSIVE chain (id, parent_hash) AS (
				SELECT c.id, c.parent_hash FROM commits c
				JOIN branches b ON b.head_commit_id = c.id WHERE b.name = ?
				UNION ALL
				SELECT p.id, p.parent_hash FROM commits p
				JOIN chain ch ON p.hash = ch.parent_hash
			)
			SELECT `+commitColumns+` FROM commits
			WHERE id IN (SELECT id FROM chain)
			ORDER BY id DESC LIMIT ? OFFSET ?`,
			q.Branch, limit, q.Offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()
	return collectCommits(rows)
}

func collectCommits(rows *sql.Rows) ([]engine.Commit, error) {
	commits := make([]engine.Commit, 0)
	for rows.Next() {
		var c engine.Commit
		if err := rows.Scan(&c.ID, &c.Hash, &c.ParentHash, &c.TreeHash, &c.Author, &c.Message, &c.Timestamp, &c.Signature); err != nil {
			return nil, fmt.Errorf("scanning commit: %w", err)
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commits: %w", err)
	}
	return commits, nil
}

// CommitStateByID loads the manifest of a hot commit as path-keyed state.
func (d *Database) CommitStateByID(commitID int64) (map[string]engine.FileState, error) {
	return d.manifestState("main", commitID)
}

// CommitStateFor loads the manifest behind a resolved head, reaching into
// the previous season for historical heads.
func (d *Database) CommitStateFor(head *engine.HeadInfo) (map[string]engine.FileState, error) {
	if head == nil {
		return map[string]engine.FileState{}, nil
	}
	if head.Historical {
		return d.manifestState("old", head.CommitID)
	}
	return d.manifestState("main", head.CommitID)
}

func (d *Database) manifestState(schema string, commitID int64) (map[string]engine.FileState, error) {
	query := fmt.Sprintf(
		`SELECT m.file_path, m.asset_id, m.blob_id, m.permissions, b.hash
		 FROM %s.manifest m JOIN store.blobs b ON b.id = m.blob_id
		 WHERE m.commit_id = ?`, schema,
	)
	rows, err := d.db.Query(query, commitID)
	if err != nil {
		return nil, fmt.Errorf("loading manifest of commit %d: %w", commitID, err)
	}
	defer rows.Close()

	state := make(map[string]engine.FileState)
	for rows.Next() {
		var (
			path  string
			entry engine.FileState
		)
		if err := rows.Scan(&path, &entry.AssetID, &entry.BlobID, &entry.Mode, &entry.BlobHash); err != nil {
			return nil, fmt.Errorf("scanning manifest row: %w", err)
		}
		state[path] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manifest rows: %w", err)
	}
	return state, nil
}

// ManifestPreview returns up to limit file paths of a commit plus the
// total count.
func (d *Database) ManifestPreview(commitID int64, limit int) ([]string, int, error) {
	rows, err := d.db.Query(
		"SELECT file_path FROM manifest WHERE commit_id = ? ORDER BY file_path LIMIT ?",
		commitID, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("previewing manifest of commit %d: %w", commitID, err)
	}
	defer rows.Close()

	files := make([]string, 0, limit)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, 0, fmt.Errorf("scanning manifest path: %w", err)
		}
		files = append(files, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating manifest paths: %w", err)
	}

	var total int
	if err := d.db.QueryRow(
		"SELECT COUNT(*) FROM manifest WHERE commit_id = ?", commitID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting manifest of commit %d: %w", commitID, err)
	}
	return files, total, nil
}
