// Package workspace gives the engine a safe view of the working tree:
// ignore-aware walks, content access, and guarded writes that can never
// escape the tree.
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hackia/lys-sub000/internal/engine"
)

const (
	// engineDirName is the metadata directory at the workspace root.
	engineDirName = ".lys"

	// hookFileName lists shell commands run before each commit.
	hookFileName = "lys"
)

// Workspace is the filesystem implementation of engine.Workspace.
type Workspace struct {
	root   string
	ignore *Ignore
}

var _ engine.Workspace = (*Workspace)(nil)

// New opens the working tree rooted at root and loads its ignore rules.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	ignore, err := LoadIgnore(abs)
	if err != nil {
		return nil, err
	}
	return &Workspace{root: abs, ignore: ignore}, nil
}

// FindRoot walks up from dir and returns the first ancestor containing
// an engine directory. dir may be empty for the current directory.
func FindRoot(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	for {
		info, err := os.Stat(filepath.Join(abs, engineDirName))
		if err == nil && info.IsDir() {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not a repository (no %s directory up from %s)", engineDirName, dir)
		}
		abs = parent
	}
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// EngineDir returns the metadata directory inside the workspace.
func (w *Workspace) EngineDir() string {
	return filepath.Join(w.root, engineDirName)
}

// resolve maps a slash-separated relative path onto the filesystem,
// rejecting anything that would leave the workspace.
func (w *Workspace) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q is not workspace-relative", rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return filepath.Join(w.root, clean), nil
}

// Walk lists every committable regular file under the root in lexical
// order. Ignored paths and the engine directory are skipped; symlinks
// are followed when their target is a readable regular file and skipped
// otherwise.
func (w *Workspace) Walk() ([]engine.WorkFile, error) {
	files := make([]engine.WorkFile, 0)

	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == w.root {
			return nil
		}

		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if w.ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.ignore.Match(rel, false) {
			return nil
		}

		info, err := os.Stat(p)
		if err != nil {
			// Broken symlink or vanished file: not committable.
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		files = append(files, engine.WorkFile{
			Path: rel,
			Mode: int64(info.Mode().Perm()),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", w.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Open opens a workspace file for reading.
func (w *Workspace) Open(rel string) (io.ReadCloser, error) {
	p, err := w.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", rel, err)
	}
	return f, nil
}

// ReadFile returns the content of a workspace file.
func (w *Workspace) ReadFile(rel string) ([]byte, error) {
	p, err := w.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// WriteFile writes data under the workspace with the given permission
// bits, creating parent directories as needed.
func (w *Workspace) WriteFile(rel string, data []byte, mode int64) error {
	p, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating parents of %s: %w", rel, err)
	}

	perm := os.FileMode(engine.PermBits(mode))
	if perm == 0 {
		perm = os.FileMode(engine.DefaultFileMode)
	}
	if err := os.WriteFile(p, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	// WriteFile honors the umask on creation; pin the exact bits.
	if err := os.Chmod(p, perm); err != nil {
		return fmt.Errorf("setting mode of %s: %w", rel, err)
	}
	return nil
}

// Remove deletes a workspace file and prunes any directories the delete
// emptied, stopping at the root.
func (w *Workspace) Remove(rel string) error {
	p, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("removing %s: %w", rel, err)
	}

	for dir := filepath.Dir(p); dir != w.root; dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// HookLines returns the commands of the workspace hook file, or nil when
// the file does not exist.
func (w *Workspace) HookLines() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(w.root, hookFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading hook file: %w", err)
	}

	lines := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}
