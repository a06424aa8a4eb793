// Package hashing wraps Blake3 content hashing behind the small set of
// helpers the rest of the engine needs. Hashes are addressed as lowercase
// hex of the 32-byte digest.
package hashing

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HexLen is the length of a hex-encoded digest.
const HexLen = 64

// Sum returns the Blake3 digest of data.
func Sum(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// SumHex returns the Blake3 digest of data as a lowercase hex string.
func SumHex(data []byte) string {
	digest := blake3.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// SumReader streams r through a Blake3 hasher and returns the hex digest
// and the number of bytes read.
func SumReader(r io.Reader) (string, int64, error) {
	h := blake3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("hashing stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SumFile returns the hex digest and size of the file at path without
// loading it into memory.
func SumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return SumReader(f)
}

// Valid reports whether s looks like a hex digest produced by this package.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
