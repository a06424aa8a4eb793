package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hackia/lys-sub000/internal/database"
	"github.com/hackia/lys-sub000/internal/engine"
	"github.com/hackia/lys-sub000/internal/identity"
	"github.com/hackia/lys-sub000/internal/workspace"
)

// Repo is a fully wired repository rooted in a test temp directory.
// Asset UUIDs come from IDs, so the first new asset is always "id-1".
type Repo struct {
	Dir   string
	Clock *StubClock
	IDs   *StubIDGenerator
	DB    *database.Database
	WS    *workspace.Workspace
	Ident *identity.Identity
	Eng   *engine.Engine
}

// NewRepo creates a repository with a real database and a fresh signing
// identity under t.TempDir(). The database is closed on test cleanup.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	return newRepo(t, true)
}

// NewUnsignedRepo creates a repository without key material, so commits
// are recorded unsigned.
func NewUnsignedRepo(t *testing.T) *Repo {
	t.Helper()
	return newRepo(t, false)
}

func newRepo(t *testing.T, signed bool) *Repo {
	t.Helper()

	dir := t.TempDir()
	clock := FixedClock()
	ids := NewStubIDGenerator()

	ws, err := workspace.New(dir)
	if err != nil {
		t.Fatalf("creating workspace: %v", err)
	}

	db, err := database.Open(ws.EngineDir(), clock.Now())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	identityDir := filepath.Join(ws.EngineDir(), "identity")
	var ident *identity.Identity
	if signed {
		ident, err = identity.Generate(identityDir)
	} else {
		ident, err = identity.Open(identityDir)
	}
	if err != nil {
		t.Fatalf("preparing identity: %v", err)
	}

	return &Repo{
		Dir:   dir,
		Clock: clock,
		IDs:   ids,
		DB:    db,
		WS:    ws,
		Ident: ident,
		Eng:   engine.New(db, ws, ident, clock, ids, engine.NewNopLogger()),
	}
}

// WriteFile writes a file under the repository root, creating parents.
func (r *Repo) WriteFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(r.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

// RemoveFile deletes a file under the repository root.
func (r *Repo) RemoveFile(t *testing.T, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(r.Dir, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("removing %s: %v", rel, err)
	}
}

// ReadFile reads a file under the repository root.
func (r *Repo) ReadFile(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

// Commit advances the clock one minute and commits the working tree, so
// consecutive commits never share a timestamp.
func (r *Repo) Commit(t *testing.T, message string) *engine.CommitSummary {
	t.Helper()
	r.Clock.Advance(time.Minute)
	summary, err := r.Eng.Commit(context.Background(), "Test Author <test@example.com>", message)
	if err != nil {
		t.Fatalf("committing %q: %v", message, err)
	}
	return summary
}
