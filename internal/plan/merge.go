package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// IncompatibleBaseError is returned when two plans do not alias the same
// base and therefore cannot be merged.
type IncompatibleBaseError struct {
	AID string
	BID string
}

func (e *IncompatibleBaseError) Error() string {
	return fmt.Sprintf("plans %s and %s do not share a base", e.AID, e.BID)
}

// Conflict records one unmergeable path. Base, Ours and Theirs are nil
// where the path was absent on that side.
type Conflict struct {
	Path   string
	Base   *FileMeta
	Ours   *FileMeta
	Theirs *FileMeta
}

// ConflictError carries every conflicting path of a failed three-way
// merge, sorted by path.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	paths := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		paths[i] = c.Path
	}
	return fmt.Sprintf("merge conflicts on %s", strings.Join(paths, ", "))
}

// MergeThreeWay merges two plans derived from the same base. Per path,
// a side that left the base untouched yields to the other side; equal
// outcomes merge trivially; same content with diverging modes keeps the
// mode that moved away from base. Everything else is a conflict.
//
// The merged plan aliases the shared base and carries one synthesized
// layer describing the combined delta.
func MergeThreeWay(a, b *Plan) (*Plan, error) {
	if a.Base != b.Base {
		return nil, &IncompatibleBaseError{AID: a.ID, BID: b.ID}
	}

	baseState := make(map[string]FileMeta)
	if a.Base != nil {
		baseState = a.Base.State()
	}
	aState := a.State()
	bState := b.State()

	paths := unionPaths(baseState, aState, bState)
	coalesceModes(paths, baseState, aState, bState)

	merged := make(map[string]FileMeta)
	var conflicts []Conflict
	for _, p := range paths {
		av, aok := aState[p]
		bv, bok := bState[p]
		basev, baseok := baseState[p]

		switch {
		case aok && bok:
			m, ok := reconcile(av, bv, basev, baseok)
			if !ok {
				conflicts = append(conflicts, conflict(p, baseState, aState, bState))
				continue
			}
			merged[p] = m
		case aok:
			// b removed (or never had) the path.
			if baseok && av.Equal(basev) {
				continue // a kept base, b removed: removal wins
			}
			if baseok {
				conflicts = append(conflicts, conflict(p, baseState, aState, bState))
				continue
			}
			merged[p] = av
		case bok:
			if baseok && bv.Equal(basev) {
				continue
			}
			if baseok {
				conflicts = append(conflicts, conflict(p, baseState, aState, bState))
				continue
			}
			merged[p] = bv
		default:
			// removed on both sides, or base-only path both dropped
		}
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
		return nil, &ConflictError{Conflicts: conflicts}
	}

	out := &Plan{ID: uuid.New().String(), Base: a.Base}
	out.AddLayer(synthesizeLayer(baseState, merged))
	return out, nil
}

// MergeLastWrite merges two plans sharing a base by stacking b's layers
// after a's, so on overlap the later writer wins. No conflicts are
// possible.
func MergeLastWrite(a, b *Plan) (*Plan, error) {
	if a.Base != b.Base {
		return nil, &IncompatibleBaseError{AID: a.ID, BID: b.ID}
	}
	out := &Plan{ID: uuid.New().String(), Base: a.Base}
	out.Layers = append(out.Layers, a.Layers...)
	out.Layers = append(out.Layers, b.Layers...)
	return out, nil
}

// coalesceModes fills unknown modes ahead of resolution: first from the
// base entry of the same path, then across the two sides when their
// hashes match. A side that never recorded a mode then compares equal to
// one that did.
func coalesceModes(paths []string, base, a, b map[string]FileMeta) {
	for _, p := range paths {
		if basev, ok := base[p]; ok && basev.Mode != nil {
			if v, ok := a[p]; ok && v.Mode == nil {
				v.Mode = basev.Mode
				a[p] = v
			}
			if v, ok := b[p]; ok && v.Mode == nil {
				v.Mode = basev.Mode
				b[p] = v
			}
		}
		av, aok := a[p]
		bv, bok := b[p]
		if !aok || !bok || av.Hash != bv.Hash {
			continue
		}
		if av.Mode == nil && bv.Mode != nil {
			av.Mode = bv.Mode
			a[p] = av
		}
		if bv.Mode == nil && av.Mode != nil {
			bv.Mode = av.Mode
			b[p] = bv
		}
	}
}

// reconcile resolves one path present on both sides, modes already
// coalesced. Reports false when the sides genuinely diverge.
func reconcile(av, bv, basev FileMeta, baseok bool) (FileMeta, bool) {
	if av.Equal(bv) {
		return av, true
	}
	if baseok && av.Equal(basev) {
		return bv, true
	}
	if baseok && bv.Equal(basev) {
		return av, true
	}
	return FileMeta{}, false
}

// synthesizeLayer expresses merged relative to base as one layer:
// additions, removals, content changes, and mode-only changes.
func synthesizeLayer(base, merged map[string]FileMeta) Layer {
	var changes []Change
	for _, p := range unionPaths(base, merged) {
		mv, mok := merged[p]
		bv, bok := base[p]
		switch {
		case mok && !bok:
			changes = append(changes, Change{Kind: Added, Path: p, Meta: mv})
		case !mok && bok:
			changes = append(changes, Change{Kind: Removed, Path: p})
		case mv.Hash != bv.Hash:
			changes = append(changes, Change{Kind: Modified, Path: p, Meta: mv})
		case !modeEqual(mv.Mode, bv.Mode):
			changes = append(changes, Change{Kind: PermissionChanged, Path: p, Meta: FileMeta{Hash: mv.Hash, Mode: mv.Mode}})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return Layer{ID: uuid.New().String(), Changes: changes}
}

func conflict(p string, base, a, b map[string]FileMeta) Conflict {
	c := Conflict{Path: p}
	if v, ok := base[p]; ok {
		c.Base = &v
	}
	if v, ok := a[p]; ok {
		c.Ours = &v
	}
	if v, ok := b[p]; ok {
		c.Theirs = &v
	}
	return c
}

func unionPaths(states ...map[string]FileMeta) []string {
	seen := make(map[string]struct{})
	for _, s := range states {
		for p := range s {
			seen[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
