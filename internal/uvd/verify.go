package uvd

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hackia/lys-sub000/internal/compress"
	"github.com/hackia/lys-sub000/internal/hashing"
)

// ReadMetadata returns the footer metadata of an archive without
// checking its signature or content hash.
func ReadMetadata(path string) (*Metadata, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	meta, _, err := readFooter(f)
	return meta, err
}

// Verify checks the archive footer, signature, and content hash, and
// returns the verified compressed payload. Any verification failure
// deletes the archive file; a malformed footer only errors.
func Verify(path string, verifier Verifier, now time.Time) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	meta, dataLen, err := readFooter(f)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(meta.Signature) == "" {
		return nil, failAndDelete(path, "archive metadata is missing a signature")
	}
	if meta.Timestamp > clampUnix(now) {
		return nil, failAndDelete(path, "archive timestamp is in the future")
	}

	unsignedHash, err := meta.UnsignedHash()
	if err != nil {
		return nil, err
	}
	if !verifier.Verify([]byte(unsignedHash), strings.TrimSpace(meta.Signature)) {
		return nil, failAndDelete(path, "archive signature verification failed")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking archive: %w", err)
	}
	archiveData := make([]byte, dataLen)
	if _, err := io.ReadFull(f, archiveData); err != nil {
		return nil, fmt.Errorf("reading archive payload: %w", err)
	}
	if hashing.SumHex(archiveData) != meta.ContentHash {
		return nil, failAndDelete(path, "archive hash does not match metadata")
	}
	return archiveData, nil
}

// Extract verifies the archive and unpacks it into a sibling directory
// named after the archive stem. Returns the extraction directory.
func Extract(path string, verifier Verifier, now time.Time) (string, error) {
	archiveData, err := Verify(path, verifier, now)
	if err != nil {
		return "", err
	}

	dest := strings.TrimSuffix(path, Extension)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("creating extraction dir: %w", err)
	}

	zr, err := compress.NewReader(bytes.NewReader(archiveData))
	if err != nil {
		return "", fmt.Errorf("opening archive payload: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading archive entry: %w", err)
		}
		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return "", err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()); err != nil {
				return "", fmt.Errorf("creating dir %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("creating dir for %s: %w", hdr.Name, err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return "", fmt.Errorf("creating %s: %w", hdr.Name, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return "", fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
			if err := out.Close(); err != nil {
				return "", fmt.Errorf("closing %s: %w", hdr.Name, err)
			}
		default:
			// symlinks and specials are never packed
		}
	}
	return dest, nil
}

func validatePath(path string) error {
	if filepath.Ext(path) != Extension {
		return fmt.Errorf("archive must have the %s extension", Extension)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("archive not found: %w", err)
	}
	return nil
}

// readFooter parses the trailing [metadata_json][u32_le len] and
// returns the metadata plus the payload length preceding it.
func readFooter(f *os.File) (*Metadata, int64, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("statting archive: %w", err)
	}
	size := info.Size()
	if size < footerLenBytes {
		return nil, 0, fmt.Errorf("archive footer is missing")
	}

	var lenBuf [footerLenBytes]byte
	if _, err := f.ReadAt(lenBuf[:], size-footerLenBytes); err != nil {
		return nil, 0, fmt.Errorf("reading footer length: %w", err)
	}
	jsonLen := int64(binary.LittleEndian.Uint32(lenBuf[:]))
	if jsonLen == 0 || jsonLen > size-footerLenBytes {
		return nil, 0, fmt.Errorf("invalid metadata length %d", jsonLen)
	}

	jsonStart := size - footerLenBytes - jsonLen
	jsonBytes := make([]byte, jsonLen)
	if _, err := f.ReadAt(jsonBytes, jsonStart); err != nil {
		return nil, 0, fmt.Errorf("reading footer metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(jsonBytes, &meta); err != nil {
		return nil, 0, fmt.Errorf("parsing footer metadata: %w", err)
	}
	return &meta, jsonStart, nil
}

func failAndDelete(path, msg string) error {
	_ = os.Remove(path)
	return fmt.Errorf("%s", msg)
}

// securePath joins a tar entry name under dest, rejecting absolute
// names and parent-directory escapes.
func securePath(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction dir", name)
	}
	return filepath.Join(dest, clean), nil
}
