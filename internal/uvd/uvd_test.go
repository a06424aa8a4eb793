package uvd_test

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hackia/lys-sub000/internal/compress"
	"github.com/hackia/lys-sub000/internal/hashing"
	"github.com/hackia/lys-sub000/internal/identity"
	"github.com/hackia/lys-sub000/internal/uvd"
	"github.com/hackia/lys-sub000/internal/workspace"
)

func newArchiveFixture(t *testing.T) (string, *workspace.Workspace, *identity.Identity) {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"uvd.toml":    "name = \"pkg\"\nversion = \"1.0.0\"\nauthor = \"tester\"\nlicense = \"MIT\"\n",
		"readme.md":   "hello\n",
		"src/main.go": "package main\n",
		"lys":         "true\n",
		"old_0.9.uvd": "stale archive bytes",
	}
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "run.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	id, err := identity.Generate(filepath.Join(root, ".lys", "identity"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return root, ws, id
}

func TestCreateVerifyExtract(t *testing.T) {
	root, ws, id := newArchiveFixture(t)
	now := time.Now()

	path, err := uvd.Create(ws, id, now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if want := filepath.Join(root, "pkg_1.0.0.uvd"); path != want {
		t.Errorf("Create() path = %q, want %q", path, want)
	}
	if _, err := os.Stat(filepath.Join(root, "uvd", "tree")); !os.IsNotExist(err) {
		t.Error("staging tree was not cleaned up after create")
	}

	if _, err := uvd.Verify(path, id, now.Add(time.Minute)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	dest, err := uvd.Extract(path, id, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if want := filepath.Join(root, "pkg_1.0.0"); dest != want {
		t.Errorf("Extract() dir = %q, want %q", dest, want)
	}

	got, err := os.ReadFile(filepath.Join(dest, "uvd", "tree", "readme.md"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != "hello\n" {
		t.Errorf("extracted readme = %q", got)
	}

	info, err := os.Stat(filepath.Join(dest, "uvd", "tree", "run.sh"))
	if err != nil {
		t.Fatalf("statting extracted script: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("extracted script mode = %o, want 755", info.Mode().Perm())
	}

	manifestBytes, err := os.ReadFile(filepath.Join(dest, "uvd", "uvd.json"))
	if err != nil {
		t.Fatalf("reading embedded manifest: %v", err)
	}
	var desc uvd.Descriptor
	if err := json.Unmarshal(manifestBytes, &desc); err != nil {
		t.Fatalf("parsing embedded manifest: %v", err)
	}
	if desc.Name != "pkg" || desc.Version != "1.0.0" {
		t.Errorf("manifest = %s %s, want pkg 1.0.0", desc.Name, desc.Version)
	}
	if desc.Depends == nil {
		t.Error("manifest depends is null, want an empty list")
	}

	if _, err := os.Stat(filepath.Join(dest, "uvd", "hooks", "linux", "install.sh")); err != nil {
		t.Errorf("seeded linux install hook missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "uvd", "hooks", "windows", "build.bat")); err != nil {
		t.Errorf("seeded windows build hook missing: %v", err)
	}

	for _, banned := range []string{"lys", "old_0.9.uvd", ".lys"} {
		if _, err := os.Stat(filepath.Join(dest, "uvd", "tree", banned)); !os.IsNotExist(err) {
			t.Errorf("%s leaked into the archive tree", banned)
		}
	}
}

func TestVerifyTamperedPayloadDeletes(t *testing.T) {
	_, ws, id := newArchiveFixture(t)
	now := time.Now()

	path, err := uvd.Create(ws, id, now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[10] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := uvd.Verify(path, id, now.Add(time.Minute)); err == nil {
		t.Fatal("Verify() accepted a tampered archive")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("tampered archive was not deleted")
	}
}

// writeRawArchive assembles an archive file from explicit parts,
// bypassing Create.
func writeRawArchive(t *testing.T, path string, payload []byte, meta uvd.Metadata) {
	t.Helper()
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metaBytes)))
	out := append(append(append([]byte{}, payload...), metaBytes...), lenBuf[:]...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyFutureTimestampDeletes(t *testing.T) {
	root := t.TempDir()
	id, err := identity.Generate(filepath.Join(root, ".lys", "identity"))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	payload := compress.Compress([]byte("payload"))
	meta := uvd.Metadata{
		Timestamp:   uint64(now.Unix()) + 9999,
		ContentHash: hashing.SumHex(payload),
	}
	unsigned, err := meta.UnsignedHash()
	if err != nil {
		t.Fatal(err)
	}
	meta.Signature, err = id.Sign([]byte(unsigned))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, "future_1.0.0.uvd")
	writeRawArchive(t, path, payload, meta)

	_, err = uvd.Verify(path, id, now)
	if err == nil || !strings.Contains(err.Error(), "future") {
		t.Fatalf("Verify() error = %v, want future-timestamp failure", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("future-dated archive was not deleted")
	}
}

func TestVerifyForeignSignatureDeletes(t *testing.T) {
	root := t.TempDir()
	id, err := identity.Generate(filepath.Join(root, ".lys", "identity"))
	if err != nil {
		t.Fatal(err)
	}
	stranger, err := identity.Generate(filepath.Join(root, "elsewhere"))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	payload := compress.Compress([]byte("payload"))
	meta := uvd.Metadata{Timestamp: uint64(now.Unix()), ContentHash: hashing.SumHex(payload)}
	unsigned, err := meta.UnsignedHash()
	if err != nil {
		t.Fatal(err)
	}
	meta.Signature, err = stranger.Sign([]byte(unsigned))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, "foreign_1.0.0.uvd")
	writeRawArchive(t, path, payload, meta)

	if _, err := uvd.Verify(path, id, now); err == nil {
		t.Fatal("Verify() accepted a foreign signature")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("foreign-signed archive was not deleted")
	}
}

func TestVerifyMalformedFooterKeepsFile(t *testing.T) {
	root := t.TempDir()
	id, err := identity.Generate(filepath.Join(root, ".lys", "identity"))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	cases := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{1, 2}},
		{"zero length footer", []byte{9, 9, 9, 0, 0, 0, 0}},
		{"length beyond file", []byte{9, 9, 9, 0xff, 0xff, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(root, strings.ReplaceAll(tc.name, " ", "_")+"_1.uvd")
			if err := os.WriteFile(path, tc.data, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := uvd.Verify(path, id, now); err == nil {
				t.Fatal("Verify() accepted a malformed footer")
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("malformed archive was deleted: %v", err)
			}
		})
	}
}

func TestVerifyRejectsWrongExtension(t *testing.T) {
	root := t.TempDir()
	id, err := identity.Generate(filepath.Join(root, ".lys", "identity"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "pkg.tar")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := uvd.Verify(path, id, time.Now()); err == nil {
		t.Fatal("Verify() accepted a non-.uvd path")
	}
}

func TestReadMetadata(t *testing.T) {
	_, ws, id := newArchiveFixture(t)
	now := time.Unix(1700000000, 0)

	path, err := uvd.Create(ws, id, now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	meta, err := uvd.ReadMetadata(path)
	if err != nil {
		t.Fatalf("ReadMetadata() error = %v", err)
	}
	if meta.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", meta.Timestamp)
	}
	if len(meta.ContentHash) != hashing.HexLen {
		t.Errorf("content hash = %q, want %d hex chars", meta.ContentHash, hashing.HexLen)
	}
	if meta.PrevBlockHash != nil {
		t.Errorf("prev block hash = %v, want nil", meta.PrevBlockHash)
	}
}

func TestPackageName(t *testing.T) {
	cases := []struct{ path, want string }{
		{"pkg_1.0.0.uvd", "pkg"},
		{"/tmp/out/my_tool_2.1.uvd", "my_tool"},
		{"plain.uvd", "plain"},
	}
	for _, tc := range cases {
		if got := uvd.PackageName(tc.path); got != tc.want {
			t.Errorf("PackageName(%s) = %s, want %s", tc.path, got, tc.want)
		}
	}
}
