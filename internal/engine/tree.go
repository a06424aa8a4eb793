package engine

import (
	"encoding/hex"
	"path"
	"sort"

	"github.com/zeebo/blake3"
)

// treeChild is one named entry of a directory being assembled.
type treeChild struct {
	name    string
	hash    string
	mode    int64
	size    int64
	dirPath string
	isDir   bool
}

// BuildTree derives the Merkle tree for a flat list of files. Paths are
// slash-separated and relative; intermediate directories are synthesized.
// A directory hash covers the name and hex hash of each child in name
// order, so any change below a directory changes every ancestor hash up
// to the returned root.
func BuildTree(files []PlannedFile) (string, []TreeNode) {
	children := map[string][]*treeChild{"": {}}
	seenDir := map[string]bool{"": true}

	var addDir func(dir string)
	addDir = func(dir string) {
		if seenDir[dir] {
			return
		}
		seenDir[dir] = true
		children[dir] = nil
		parent := parentDir(dir)
		addDir(parent)
		children[parent] = append(children[parent], &treeChild{
			name:    path.Base(dir),
			dirPath: dir,
			isDir:   true,
		})
	}

	for _, f := range files {
		dir := parentDir(f.Path)
		addDir(dir)
		children[dir] = append(children[dir], &treeChild{
			name: path.Base(f.Path),
			hash: f.Hash,
			mode: FileMode(f.Mode),
			size: f.Size,
		})
	}

	dirs := make([]string, 0, len(children))
	for d := range children {
		dirs = append(dirs, d)
	}
	// Deepest directories first so every subdirectory hash is known
	// before its parent digest is computed.
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := pathDepth(dirs[i]), pathDepth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	dirHashes := make(map[string]string, len(dirs))
	for _, d := range dirs {
		ents := children[d]
		sort.Slice(ents, func(i, j int) bool { return ents[i].name < ents[j].name })

		h := blake3.New()
		for _, e := range ents {
			if e.isDir {
				e.hash = dirHashes[e.dirPath]
			}
			h.Write([]byte(e.name))
			h.Write([]byte(e.hash))
		}
		dirHashes[d] = hex.EncodeToString(h.Sum(nil))
	}

	nodes := make([]TreeNode, 0, len(files)+len(dirs))
	ordered := make([]string, len(dirs))
	copy(ordered, dirs)
	sort.Strings(ordered)
	for _, d := range ordered {
		parentHash := dirHashes[d]
		for _, e := range children[d] {
			node := TreeNode{
				Parent: parentHash,
				Name:   e.name,
				Hash:   e.hash,
				Mode:   e.mode,
				Size:   e.size,
			}
			if e.isDir {
				node.Mode = DirMode
				node.Size = 0
			}
			nodes = append(nodes, node)
		}
	}

	return dirHashes[""], nodes
}

func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func pathDepth(p string) int {
	if p == "" {
		return 0
	}
	depth := 1
	for _, c := range p {
		if c == '/' {
			depth++
		}
	}
	return depth
}
