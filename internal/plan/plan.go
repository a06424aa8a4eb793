// Package plan models layered change plans over a shared base snapshot.
// A plan never mutates its base; derived plans alias the same base value,
// and merges require that aliasing so both sides agree on what "base"
// means.
package plan

import (
	"github.com/google/uuid"
)

// FileMeta is the recorded state of one path: a content hash and an
// optional permission mode. A nil mode means "unspecified".
type FileMeta struct {
	Hash string
	Mode *uint32
}

// ModeOf is a convenience constructor for optional modes.
func ModeOf(m uint32) *uint32 {
	return &m
}

// Equal reports full equality, mode included.
func (m FileMeta) Equal(o FileMeta) bool {
	return m.Hash == o.Hash && modeEqual(m.Mode, o.Mode)
}

func modeEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ChangeKind classifies one plan change.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
	PermissionChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	case PermissionChanged:
		return "permission-changed"
	default:
		return "unknown"
	}
}

// Change is one path-level operation inside a layer. Meta is unused for
// Removed; for PermissionChanged only Meta.Mode applies.
type Change struct {
	Kind ChangeKind
	Path string
	Meta FileMeta
}

// Layer is an ordered batch of changes.
type Layer struct {
	ID      string
	Changes []Change
}

// Plan is a base snapshot plus an ordered stack of layers. Base is nil
// for root plans.
type Plan struct {
	ID     string
	Base   *Plan
	Layers []Layer
}

// New creates an empty root plan. An empty id is replaced with a fresh
// UUID.
func New(id string) *Plan {
	if id == "" {
		id = uuid.New().String()
	}
	return &Plan{ID: id}
}

// Derive creates a child plan sharing this plan as base. Two children of
// the same plan are merge-compatible because they alias the same base.
func (p *Plan) Derive(id string) *Plan {
	if id == "" {
		id = uuid.New().String()
	}
	return &Plan{ID: id, Base: p}
}

// AddLayer appends a layer and returns the plan for chaining.
func (p *Plan) AddLayer(l Layer) *Plan {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	p.Layers = append(p.Layers, l)
	return p
}

// State materializes the plan: the base state with every layer applied
// in order.
func (p *Plan) State() map[string]FileMeta {
	var state map[string]FileMeta
	if p.Base != nil {
		state = p.Base.State()
	} else {
		state = make(map[string]FileMeta)
	}

	for _, layer := range p.Layers {
		for _, c := range layer.Changes {
			switch c.Kind {
			case Added, Modified:
				state[c.Path] = c.Meta
			case Removed:
				delete(state, c.Path)
			case PermissionChanged:
				if cur, ok := state[c.Path]; ok && c.Meta.Mode != nil {
					cur.Mode = c.Meta.Mode
					state[c.Path] = cur
				}
			}
		}
	}
	return state
}
