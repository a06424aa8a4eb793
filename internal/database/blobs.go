package database

import (
	"database/sql"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/hackia/lys-sub000/internal/compress"
	"github.com/hackia/lys-sub000/internal/engine"
)

// BlobBytes returns the original content stored under hash. Rows are held
// compressed; rows from before compression are returned as stored.
func (d *Database) BlobBytes(hash string) ([]byte, error) {
	var content []byte
	err := d.db.QueryRow("SELECT content FROM store.blobs WHERE hash = ?", hash).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("blob %s: %w", hash, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading blob %s: %w", hash, err)
	}
	return compress.Decompress(content), nil
}

// BlobExists reports whether a blob row exists for hash.
func (d *Database) BlobExists(hash string) (bool, error) {
	var one int
	err := d.db.QueryRow("SELECT 1 FROM store.blobs WHERE hash = ? LIMIT 1", hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking blob %s: %w", hash, err)
	}
	return true, nil
}

// ensureBlobTx resolves the blob row id for hash, inserting the content
// (compressed) when the store has never seen it. It reports whether a new
// row was created.
func ensureBlobTx(tx *sql.Tx, path, hash string, size int64, content func(string) ([]byte, error)) (int64, bool, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM store.blobs WHERE hash = ?", hash).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("looking up blob %s: %w", hash, err)
	}

	if content == nil {
		return 0, false, fmt.Errorf("blob %s for %s has no content source: %w", hash, path, engine.ErrNotFound)
	}
	data, err := content(path)
	if err != nil {
		return 0, false, fmt.Errorf("reading content of %s: %w", path, err)
	}

	res, err := tx.Exec(
		"INSERT OR IGNORE INTO store.blobs (hash, content, size, mime_type) VALUES (?, ?, ?, ?)",
		hash, compress.Compress(data), size, detectMime(path, data),
	)
	if err != nil {
		return 0, false, fmt.Errorf("storing blob %s: %w", hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err == nil {
			return id, true, nil
		}
	}

	// Lost a race with another writer; the row exists now.
	if err := tx.QueryRow("SELECT id FROM store.blobs WHERE hash = ?", hash).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("re-reading blob %s: %w", hash, err)
	}
	return id, false, nil
}

// createAssetTx allocates a fresh asset identity row under the UUID the
// plan assigned.
func createAssetTx(tx *sql.Tx, assetUUID, createdAt string) (int64, error) {
	if assetUUID == "" {
		return 0, fmt.Errorf("creating asset: plan carries no uuid")
	}
	res, err := tx.Exec(
		"INSERT INTO store.assets (uuid, created_at) VALUES (?, ?)",
		assetUUID, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("creating asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading asset id: %w", err)
	}
	return id, nil
}

// BlobData is one pre-hashed blob for bulk insertion during imports.
type BlobData struct {
	Hash    string
	Content []byte
	Path    string
}

// EnsureBlobs inserts a batch of blobs in one transaction, skipping
// hashes the store already holds. It returns the number of new rows.
func (d *Database) EnsureBlobs(blobs []BlobData) (int, error) {
	if len(blobs) == 0 {
		return 0, nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting blob batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO store.blobs (hash, content, size, mime_type) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("preparing blob insert: %w", err)
	}
	defer stmt.Close()

	created := 0
	for _, b := range blobs {
		res, err := stmt.Exec(b.Hash, compress.Compress(b.Content), len(b.Content), detectMime(b.Path, b.Content))
		if err != nil {
			return 0, fmt.Errorf("storing blob %s: %w", b.Hash, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			created += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing blob batch: %w", err)
	}
	return created, nil
}

// detectMime guesses a content type from the file extension, falling
// back to content sniffing.
func detectMime(path string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	return http.DetectContentType(probe)
}
