package workspace

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// Ignore file names read from the workspace root. The directive file syl
// sits alongside the conventional dotfile so either works.
const (
	ignoreFileName    = ".lysignore"
	directiveFileName = "syl"
)

// defaultIgnores are never walked regardless of ignore files: the engine
// directory itself and the ignore files.
var defaultIgnores = []string{engineDirName, ignoreFileName, directiveFileName}

// Ignore decides which paths a walk skips. Patterns follow path.Match
// syntax; a pattern containing a slash is matched against the full
// relative path, otherwise against path base names. A trailing slash
// restricts the pattern to directories (and everything below them).
type Ignore struct {
	patterns []string
}

// LoadIgnore reads the ignore and directive files under root, combining
// them with the built-in exclusions. Missing files are fine.
func LoadIgnore(root string) (*Ignore, error) {
	ig := &Ignore{patterns: append([]string{}, defaultIgnores...)}

	for _, name := range []string{ignoreFileName, directiveFileName} {
		data, err := os.ReadFile(path.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ig.patterns = append(ig.patterns, line)
		}
	}
	return ig, nil
}

// Match reports whether the slash-separated relative path is ignored.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	segments := strings.Split(rel, "/")
	base := segments[len(segments)-1]

	for _, pattern := range ig.patterns {
		dirOnly := strings.HasSuffix(pattern, "/")
		pattern = strings.TrimSuffix(pattern, "/")

		if strings.Contains(pattern, "/") {
			// Anchored pattern: match the whole path or an ancestor.
			limit := len(segments)
			if dirOnly && !isDir {
				limit--
			}
			if matchAncestor(pattern, segments, limit) {
				return true
			}
			continue
		}

		if !dirOnly || isDir {
			if ok, _ := path.Match(pattern, base); ok {
				return true
			}
		}
		// An unanchored pattern on an ancestor directory covers the
		// whole subtree, e.g. "vendor" ignores vendor/lib/a.go.
		if matchAncestor(pattern, segments[:len(segments)-1], len(segments)-1) {
			return true
		}
	}
	return false
}

// matchAncestor reports whether pattern matches any joined prefix of up
// to limit segments.
func matchAncestor(pattern string, segments []string, limit int) bool {
	for i := 1; i <= limit && i <= len(segments); i++ {
		if ok, _ := path.Match(pattern, strings.Join(segments[:i], "/")); ok {
			return true
		}
	}
	return false
}
