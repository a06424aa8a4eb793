package compress_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/hackia/lys-sub000/internal/compress"
)

func TestCompressRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"text", []byte("hello, repeated content content content content")},
		{"empty", []byte{}},
		{"binary", bytes.Repeat([]byte{0x00, 0xFF, 0x42}, 2048)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			packed := compress.Compress(tc.data)
			got := compress.Decompress(packed)
			if !bytes.Equal(got, tc.data) {
				t.Errorf("Decompress(Compress()) = %d bytes, want %d bytes", len(got), len(tc.data))
			}
		})
	}
}

func TestCompressShrinksRedundantInput(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 10_000)
	packed := compress.Compress(data)
	if len(packed) >= len(data) {
		t.Errorf("Compress() = %d bytes, want < %d", len(packed), len(data))
	}
}

func TestDecompressPassesThroughRawInput(t *testing.T) {
	// Blob rows written before compression landed hold the original bytes.
	raw := []byte("stored before compression existed")
	got := compress.Decompress(raw)
	if !bytes.Equal(got, raw) {
		t.Errorf("Decompress(raw) = %q, want input unchanged", got)
	}
}

func TestStreamingRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("stream me "), 5000)

	var buf bytes.Buffer
	w, err := compress.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, err := compress.NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("streamed round trip = %d bytes, want %d", len(got), len(data))
	}
}

func TestOneShotDecompressReadsStreamedFrames(t *testing.T) {
	var buf bytes.Buffer
	w, err := compress.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := w.Write([]byte("framed")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := compress.Decompress(buf.Bytes()); string(got) != "framed" {
		t.Errorf("Decompress(stream frame) = %q, want %q", got, "framed")
	}
}
