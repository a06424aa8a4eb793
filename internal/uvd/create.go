package uvd

import (
	"archive/tar"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hackia/lys-sub000/internal/compress"
	"github.com/hackia/lys-sub000/internal/hashing"
	"github.com/hackia/lys-sub000/internal/workspace"
)

var hookPlatforms = []string{"linux", "macos", "windows", "bsd"}

var hookNames = []string{
	"pre-upgrade", "upgrade", "post-upgrade",
	"pre-uninstall", "uninstall", "post-uninstall",
	"pre-install", "install", "post-install",
	"build",
}

// Create stages the working tree under uvd/, packs it into a signed
// archive named <name>_<version>.uvd in the descriptor's output
// directory, and returns the archive path. The uvd/tree staging copy is
// removed afterwards; hooks and uvd.json stay for the next build.
func Create(ws *workspace.Workspace, signer Signer, now time.Time) (string, error) {
	root := ws.Root()
	staging := filepath.Join(root, stagingDirName)

	if err := seedHooks(staging); err != nil {
		return "", err
	}

	desc, err := LoadDescriptor(filepath.Join(root, DescriptorFile))
	if err != nil {
		return "", err
	}
	if err := copyIcon(root, staging, desc); err != nil {
		return "", err
	}
	if err := writeManifest(staging, desc); err != nil {
		return "", err
	}
	if err := stageTree(ws, staging); err != nil {
		return "", err
	}
	defer os.RemoveAll(filepath.Join(staging, treeDirName))

	outDir := desc.OutputDir()
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	archivePath := filepath.Join(outDir, desc.ArchiveName())
	// A stale archive in the tree must not end up inside the new one.
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("removing stale archive: %w", err)
	}

	tarBytes, err := tarStaging(root)
	if err != nil {
		return "", err
	}
	archiveData := compress.Compress(tarBytes)

	meta := Metadata{
		Timestamp:   clampUnix(now),
		ContentHash: hashing.SumHex(archiveData),
	}
	unsignedHash, err := meta.UnsignedHash()
	if err != nil {
		return "", err
	}
	meta.Signature, err = signer.Sign([]byte(unsignedHash))
	if err != nil {
		return "", fmt.Errorf("signing archive metadata: %w", err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding archive metadata: %w", err)
	}
	if len(metaBytes) > math.MaxUint32 {
		return "", fmt.Errorf("archive metadata exceeds footer limit")
	}

	if err := writeArchive(archivePath, archiveData, metaBytes); err != nil {
		return "", err
	}
	return archivePath, nil
}

// seedHooks creates the per-platform hook layout, seeding stub scripts
// for any hook not already present.
func seedHooks(staging string) error {
	for _, platform := range hookPlatforms {
		dir := filepath.Join(staging, hooksDirName, platform)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating hook dir: %w", err)
		}
		ext, stub := ".sh", "#!/bin/sh\n"
		if platform == "windows" {
			ext, stub = ".bat", "@echo off\r\n"
		}
		for _, name := range hookNames {
			hook := filepath.Join(dir, name+ext)
			if _, err := os.Stat(hook); err == nil {
				continue
			}
			if err := os.WriteFile(hook, []byte(stub), 0o755); err != nil {
				return fmt.Errorf("seeding hook %s: %w", name, err)
			}
		}
	}
	if err := os.MkdirAll(filepath.Join(staging, treeDirName), 0o755); err != nil {
		return fmt.Errorf("creating staging tree: %w", err)
	}
	return nil
}

func copyIcon(root, staging string, desc *Descriptor) error {
	if desc.Icon == nil || *desc.Icon == "" {
		return nil
	}
	src := filepath.Join(root, *desc.Icon)
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	dst := filepath.Join(staging, *desc.Icon)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating icon dir: %w", err)
	}
	return copyFile(src, dst, 0o644)
}

func writeManifest(staging string, desc *Descriptor) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// stageTree copies the committable working tree into uvd/tree,
// excluding the staging directory itself, the hook file, and any
// existing archives.
func stageTree(ws *workspace.Workspace, staging string) error {
	treeDir := filepath.Join(staging, treeDirName)
	if err := os.RemoveAll(treeDir); err != nil {
		return fmt.Errorf("clearing staging tree: %w", err)
	}
	if err := os.MkdirAll(treeDir, 0o755); err != nil {
		return fmt.Errorf("creating staging tree: %w", err)
	}

	files, err := ws.Walk()
	if err != nil {
		return fmt.Errorf("walking working tree: %w", err)
	}
	for _, f := range files {
		if skipStaging(f.Path) {
			continue
		}
		dst := filepath.Join(treeDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating tree dir: %w", err)
		}
		src := filepath.Join(ws.Root(), filepath.FromSlash(f.Path))
		if err := copyFile(src, dst, os.FileMode(f.Mode)); err != nil {
			return err
		}
	}
	return nil
}

func skipStaging(path string) bool {
	if path == "lys" || strings.HasSuffix(path, Extension) {
		return true
	}
	return path == stagingDirName || strings.HasPrefix(path, stagingDirName+"/")
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return nil
}

// tarStaging tars the uvd/ directory relative to root, entry names
// slash-separated and prefixed with "uvd/".
func tarStaging(root string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "lys-uvd-*.tar")
	if err != nil {
		return nil, fmt.Errorf("creating temp tar: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	tw := tar.NewWriter(tmp)
	staging := filepath.Join(root, stagingDirName)
	walkErr := filepath.WalkDir(staging, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !d.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		tw.Close()
		tmp.Close()
		return nil, fmt.Errorf("taring staging dir: %w", walkErr)
	}
	if err := tw.Close(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("finishing tar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp tar: %w", err)
	}

	data, err := os.ReadFile(tmpName)
	if err != nil {
		return nil, fmt.Errorf("reading temp tar: %w", err)
	}
	return data, nil
}

func writeArchive(path string, archiveData, metaBytes []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	var lenBuf [footerLenBytes]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metaBytes)))
	for _, chunk := range [][]byte{archiveData, metaBytes, lenBuf[:]} {
		if _, err := f.Write(chunk); err != nil {
			f.Close()
			return fmt.Errorf("writing archive: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

func clampUnix(t time.Time) uint64 {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}
