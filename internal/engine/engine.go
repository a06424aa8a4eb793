// Package engine implements the version control core: working-tree
// status, commits, checkouts, refs, history, and store maintenance. It
// talks to persistence, the working tree, and the signing identity only
// through the interfaces declared in this package.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hackia/lys-sub000/internal/hashing"
)

// Well-known ref and config names.
const (
	DefaultBranch = "main"

	// DetachedBranch is the current_branch sentinel meaning "no branch".
	// It is never a valid branch name.
	DetachedBranch = "DETACHED"

	configCurrentBranch = "current_branch"
	configCurrentCommit = "current_commit"

	// timestampLayout is the wire format of every stored timestamp.
	// RFC 3339 UTC strings compare lexicographically in timestamp order.
	timestampLayout = time.RFC3339
)

// Engine orchestrates all repository operations.
type Engine struct {
	db     Database
	ws     Workspace
	signer Signer
	clock  Clock
	ids    IDGenerator
	log    Logger
}

// New wires an engine from its collaborators. A nil ids falls back to
// random UUIDs.
func New(db Database, ws Workspace, signer Signer, clock Clock, ids IDGenerator, log Logger) *Engine {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Engine{db: db, ws: ws, signer: signer, clock: clock, ids: ids, log: log}
}

// CurrentBranch returns the checked-out branch name, DetachedBranch when
// the head is detached.
func (e *Engine) CurrentBranch() (string, error) {
	name, err := e.db.ConfigValue(configCurrentBranch)
	if err != nil {
		return "", fmt.Errorf("reading current branch: %w", err)
	}
	if name == "" {
		return DefaultBranch, nil
	}
	return name, nil
}

// Head resolves the commit the working tree is based on. It returns nil
// when the repository has no commits yet.
func (e *Engine) Head() (*HeadInfo, error) {
	branch, err := e.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if branch != DetachedBranch {
		info, err := e.db.BranchHead(branch)
		if err != nil {
			return nil, fmt.Errorf("resolving head of %s: %w", branch, err)
		}
		return info, nil
	}

	hash, err := e.db.ConfigValue(configCurrentCommit)
	if err != nil {
		return nil, fmt.Errorf("reading detached head: %w", err)
	}
	if hash == "" {
		return nil, nil
	}
	commit, err := e.db.CommitByHashPrefix(hash)
	if err != nil {
		return nil, fmt.Errorf("resolving detached head %s: %w", hash, err)
	}
	if commit == nil {
		return nil, nil
	}
	return &HeadInfo{CommitID: commit.ID, Hash: commit.Hash, TreeHash: commit.TreeHash}, nil
}

// headState loads the manifest of the head commit as a path-keyed map.
// Commits indexed without a manifest fall back to the flattened tree.
func (e *Engine) headState() (map[string]FileState, *HeadInfo, error) {
	info, err := e.Head()
	if err != nil {
		return nil, nil, err
	}
	if info == nil {
		return map[string]FileState{}, nil, nil
	}

	state, err := e.db.CommitStateFor(info)
	if err != nil {
		return nil, nil, fmt.Errorf("loading head state: %w", err)
	}
	if len(state) == 0 && info.TreeHash != "" {
		state, err = e.stateFromTree(info.TreeHash)
		if err != nil {
			return nil, nil, err
		}
	}
	return state, info, nil
}

// stateFromTree reconstructs file state from the Merkle index alone.
// Asset identity is unknown on this path, so downstream commits treat
// every file as new.
func (e *Engine) stateFromTree(treeHash string) (map[string]FileState, error) {
	flat, err := e.db.FlattenTree(treeHash)
	if err != nil {
		return nil, fmt.Errorf("flattening tree %s: %w", treeHash, err)
	}
	state := make(map[string]FileState, len(flat))
	for p, entry := range flat {
		if IsDirMode(entry.Mode) {
			continue
		}
		state[p] = FileState{BlobHash: entry.Hash, Mode: PermBits(entry.Mode)}
	}
	return state, nil
}

// scannedFile pairs a walked file with its content hash.
type scannedFile struct {
	WorkFile
	Hash string
}

// scan walks the working tree and hashes every committable file.
func (e *Engine) scan(ctx context.Context) ([]scannedFile, error) {
	files, err := e.ws.Walk()
	if err != nil {
		return nil, fmt.Errorf("walking working tree: %w", err)
	}

	scanned := make([]scannedFile, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := e.ws.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Path, err)
		}
		hash, size, err := hashing.SumReader(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", f.Path, err)
		}
		f.Size = size
		scanned = append(scanned, scannedFile{WorkFile: f, Hash: hash})
	}
	return scanned, nil
}

// classify compares scanned files against recorded head state and
// returns changed paths in lexical order. Unchanged paths are omitted.
func classify(files []scannedFile, head map[string]FileState) []StatusEntry {
	entries := make([]StatusEntry, 0)
	onDisk := make(map[string]bool, len(files))

	for _, f := range files {
		onDisk[f.Path] = true
		prev, ok := head[f.Path]
		switch {
		case !ok:
			entries = append(entries, StatusEntry{Path: f.Path, Kind: ChangeNew})
		case prev.BlobHash != f.Hash:
			entries = append(entries, StatusEntry{Path: f.Path, Kind: ChangeModified, AssetID: prev.AssetID})
		}
	}

	for p, prev := range head {
		if !onDisk[p] {
			entries = append(entries, StatusEntry{Path: p, Kind: ChangeDeleted, AssetID: prev.AssetID})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// Status reports every working-tree path that differs from the head
// commit. A repository with no commits reports every file as new.
func (e *Engine) Status(ctx context.Context) ([]StatusEntry, error) {
	state, _, err := e.headState()
	if err != nil {
		return nil, err
	}
	files, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}
	return classify(files, state), nil
}
