package uvd

import (
	"encoding/json"
	"fmt"

	"github.com/hackia/lys-sub000/internal/hashing"
)

// Metadata is the signed footer of a .uvd archive. ContentHash covers
// the compressed archive bytes; Signature covers the hash of the JSON
// encoding of the unsigned fields, in this field order.
type Metadata struct {
	Timestamp     uint64  `json:"timestamp"`
	PrevBlockHash *string `json:"prev_block_hash"`
	ContentHash   string  `json:"content_hash"`
	Signature     string  `json:"signature"`
}

type unsignedMetadata struct {
	Timestamp     uint64  `json:"timestamp"`
	PrevBlockHash *string `json:"prev_block_hash"`
	ContentHash   string  `json:"content_hash"`
}

// UnsignedHash is the hex digest the footer signature is computed over.
func (m Metadata) UnsignedHash() (string, error) {
	u := unsignedMetadata{
		Timestamp:     m.Timestamp,
		PrevBlockHash: m.PrevBlockHash,
		ContentHash:   m.ContentHash,
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encoding unsigned metadata: %w", err)
	}
	return hashing.SumHex(data), nil
}
