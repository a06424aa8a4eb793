// Package compress provides Zstandard compression for blob storage and
// archive payloads. A single encoder/decoder pair is shared process-wide;
// both are safe for concurrent use via EncodeAll/DecodeAll.
package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("compress: creating zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("compress: creating zstd decoder: %v", err))
	}
}

// Compress returns data compressed with Zstandard.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress returns the decompressed form of data. Rows written before
// compression was introduced are stored raw, so input that does not carry
// a valid Zstandard frame is returned unchanged.
func Decompress(data []byte) []byte {
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return data
	}
	return out
}

// NewWriter returns a streaming Zstandard writer around w. The caller must
// Close it to flush the final frame.
func NewWriter(w io.Writer) (*zstd.Encoder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd stream writer: %w", err)
	}
	return enc, nil
}

// NewReader returns a streaming Zstandard reader around r. The caller must
// Close it when done.
func NewReader(r io.Reader) (*zstd.Decoder, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd stream reader: %w", err)
	}
	return dec, nil
}
