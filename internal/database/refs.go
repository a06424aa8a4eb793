package database

import (
	"database/sql"
	"fmt"

	"github.com/hackia/lys-sub000/internal/engine"
)

// ConfigValue reads one config key, returning "" when the key is absent.
func (d *Database) ConfigValue(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading config %s: %w", key, err)
	}
	return value, nil
}

// SetConfigValue writes one config key.
func (d *Database) SetConfigValue(key, value string) error {
	_, err := d.db.Exec(
		"INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing config %s: %w", key, err)
	}
	return nil
}

// BranchByName loads one branch, or nil when it does not exist.
func (d *Database) BranchByName(name string) (*engine.BranchInfo, error) {
	var b engine.BranchInfo
	err := d.db.QueryRow(
		"SELECT id, name, head_commit_id FROM branches WHERE name = ?", name,
	).Scan(&b.ID, &b.Name, &b.HeadCommitID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading branch %s: %w", name, err)
	}
	return &b, nil
}

// Branches lists every branch by name.
func (d *Database) Branches() ([]engine.BranchInfo, error) {
	rows, err := d.db.Query("SELECT id, name, head_commit_id FROM branches ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer rows.Close()

	branches := make([]engine.BranchInfo, 0)
	for rows.Next() {
		var b engine.BranchInfo
		if err := rows.Scan(&b.ID, &b.Name, &b.HeadCommitID); err != nil {
			return nil, fmt.Errorf("scanning branch: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating branches: %w", err)
	}
	return branches, nil
}

// CreateBranch inserts a new branch. Duplicate names are an error.
func (d *Database) CreateBranch(name string, headCommitID int64) error {
	_, err := d.db.Exec(
		"INSERT INTO branches (name, head_commit_id) VALUES (?, ?)", name, headCommitID,
	)
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// SetBranchHead moves a branch head, creating the branch row when the
// current season has none yet.
func (d *Database) SetBranchHead(name string, headCommitID int64) error {
	_, err := d.db.Exec(
		`INSERT INTO branches (name, head_commit_id) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET head_commit_id = excluded.head_commit_id`,
		name, headCommitID,
	)
	if err != nil {
		return fmt.Errorf("moving branch %s: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a branch row. Deleting a missing branch is not an
// error.
func (d *Database) DeleteBranch(name string) error {
	if _, err := d.db.Exec("DELETE FROM branches WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting branch %s: %w", name, err)
	}
	return nil
}

// CreateTag pins a commit under an immutable name.
func (d *Database) CreateTag(name string, commitID int64, description, createdAt string) error {
	_, err := d.db.Exec(
		"INSERT INTO tags (name, commit_id, description, created_at) VALUES (?, ?, ?, ?)",
		name, commitID, description, createdAt,
	)
	if err != nil {
		return fmt.Errorf("creating tag %s: %w", name, err)
	}
	return nil
}

// Tags lists every tag, newest first, joined with its commit hash.
func (d *Database) Tags() ([]engine.TagInfo, error) {
	rows, err := d.db.Query(
		`SELECT t.id, t.name, t.commit_id, IFNULL(c.hash, ''), t.description, t.created_at
		 FROM tags t LEFT JOIN commits c ON c.id = t.commit_id
		 ORDER BY t.created_at DESC, t.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	tags := make([]engine.TagInfo, 0)
	for rows.Next() {
		var t engine.TagInfo
		if err := rows.Scan(&t.ID, &t.Name, &t.CommitID, &t.CommitHash, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return tags, nil
}
