package shelf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hackia/lys-sub000/internal/hashing"
	"github.com/hackia/lys-sub000/internal/uvd"
)

const latestMarker = "latest"

// ArchiveKey is the shelf key for a published archive.
func ArchiveKey(name, contentHash string) string {
	return name + "/" + contentHash + uvd.Extension
}

func markerKey(name string) string {
	return name + "/" + latestMarker
}

// Publish verifies the archive locally, uploads it under
// <name>/<content_hash>.uvd, and points the <name>/latest marker at it.
// Returns the shelf key of the uploaded archive.
func Publish(ctx context.Context, s Shelf, name, archivePath string, verifier uvd.Verifier, now time.Time) (string, error) {
	if _, err := uvd.Verify(archivePath, verifier, now); err != nil {
		return "", fmt.Errorf("verifying archive before publish: %w", err)
	}
	meta, err := uvd.ReadMetadata(archivePath)
	if err != nil {
		return "", err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("statting archive: %w", err)
	}

	key := ArchiveKey(name, meta.ContentHash)
	if err := s.Put(ctx, key, f, info.Size()); err != nil {
		return "", fmt.Errorf("publishing archive: %w", err)
	}
	if err := s.Put(ctx, markerKey(name), strings.NewReader(meta.ContentHash), int64(len(meta.ContentHash))); err != nil {
		return "", fmt.Errorf("updating latest marker: %w", err)
	}
	return key, nil
}

// Fetch downloads the latest published archive for name into destDir,
// verifies it, and returns the local archive path. The download lands
// in a temp file first so a failed verification never leaves a bad
// archive behind.
func Fetch(ctx context.Context, s Shelf, name, destDir string, verifier uvd.Verifier, now time.Time) (string, error) {
	var marker bytes.Buffer
	if err := s.Get(ctx, markerKey(name), &marker); err != nil {
		return "", fmt.Errorf("reading latest marker: %w", err)
	}
	contentHash := strings.TrimSpace(marker.String())
	if !hashing.Valid(contentHash) {
		return "", fmt.Errorf("latest marker for %s is not a content hash", name)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating destination dir: %w", err)
	}

	tmp, err := os.CreateTemp(destDir, ".fetch-*"+uvd.Extension)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := s.Get(ctx, ArchiveKey(name, contentHash), tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("downloading archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	meta, err := uvd.ReadMetadata(tmpPath)
	if err != nil {
		return "", err
	}
	if meta.ContentHash != contentHash {
		return "", fmt.Errorf("fetched archive does not match the latest marker")
	}
	if _, err := uvd.Verify(tmpPath, verifier, now); err != nil {
		return "", fmt.Errorf("verifying fetched archive: %w", err)
	}

	dest := filepath.Join(destDir, fmt.Sprintf("%s_%s%s", name, contentHash[:12], uvd.Extension))
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("moving fetched archive: %w", err)
	}
	success = true
	return dest, nil
}
