package database_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hackia/lys-sub000/internal/database"
	"github.com/hackia/lys-sub000/internal/engine"
	"github.com/hackia/lys-sub000/internal/hashing"
)

var testNow = time.Date(2026, time.August, 22, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *database.Database {
	t.Helper()
	return openTestDBAt(t, filepath.Join(t.TempDir(), ".lys"), testNow)
}

func openTestDBAt(t *testing.T, dir string, now time.Time) *database.Database {
	t.Helper()
	d, err := database.Open(dir, now)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// buildPlan assembles a commit plan over literal file contents, the same
// way the engine does from a working-tree scan. Every file gets a fresh
// asset whose UUID is derived from its path and the commit timestamp.
func buildPlan(branch, parent, message, timestamp string, files map[string]string) *engine.CommitPlan {
	contents := make(map[string][]byte, len(files))
	planned := make([]engine.PlannedFile, 0, len(files))
	for p, c := range files {
		data := []byte(c)
		contents[p] = data
		planned = append(planned, engine.PlannedFile{
			Path:      p,
			Hash:      hashing.SumHex(data),
			Mode:      0o644,
			Size:      int64(len(data)),
			AssetUUID: p + "@" + timestamp,
		})
	}
	sort.Slice(planned, func(i, j int) bool { return planned[i].Path < planned[j].Path })

	treeHash, nodes := engine.BuildTree(planned)
	author := "tester"
	return &engine.CommitPlan{
		Branch:     branch,
		Author:     author,
		Message:    message,
		Timestamp:  timestamp,
		ParentHash: parent,
		TreeHash:   treeHash,
		Hash:       engine.CommitHash(parent, author, message, timestamp),
		Signature:  engine.UnsignedSignature,
		Nodes:      nodes,
		Files:      planned,
		Content: func(p string) ([]byte, error) {
			return contents[p], nil
		},
	}
}

func mustApply(t *testing.T, d *database.Database, plan *engine.CommitPlan) *engine.CommitResult {
	t.Helper()
	result, err := d.ApplyCommit(context.Background(), plan)
	if err != nil {
		t.Fatalf("ApplyCommit() error = %v", err)
	}
	return result
}

func TestOpen(t *testing.T) {
	t.Run("creates the seasonal layout", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), ".lys")
		d := openTestDBAt(t, dir, testNow)

		wantHot := filepath.Join(dir, "db", "2026", "summer", "summer.db")
		if d.HotPath() != wantHot {
			t.Errorf("HotPath() = %s, want %s", d.HotPath(), wantHot)
		}
		if _, err := os.Stat(wantHot); err != nil {
			t.Errorf("hot database missing: %v", err)
		}
		if _, err := os.Stat(database.StorePath(dir)); err != nil {
			t.Errorf("store database missing: %v", err)
		}
		if d.OldPath() != "" {
			t.Errorf("OldPath() = %s, want empty on first open", d.OldPath())
		}
	})

	t.Run("seeds the current branch", func(t *testing.T) {
		d := openTestDB(t)
		got, err := d.ConfigValue("current_branch")
		if err != nil {
			t.Fatalf("ConfigValue() error = %v", err)
		}
		if got != "main" {
			t.Errorf("current_branch = %q, want %q", got, "main")
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), ".lys")
		first := openTestDBAt(t, dir, testNow)
		first.Close()
		openTestDBAt(t, dir, testNow)
	})
}

func TestApplyCommit(t *testing.T) {
	t.Run("persists commit, tree, manifest, and branch head", func(t *testing.T) {
		d := openTestDB(t)
		plan := buildPlan("main", "", "first commit", "2026-08-22T12:00:00Z", map[string]string{
			"readme.md":   "hello",
			"src/main.go": "package main",
		})
		result := mustApply(t, d, plan)

		if result.NewBlobs != 2 {
			t.Errorf("NewBlobs = %d, want 2", result.NewBlobs)
		}
		if len(result.AssetIDs) != 2 {
			t.Errorf("len(AssetIDs) = %d, want 2", len(result.AssetIDs))
		}

		commit, err := d.CommitByID(result.CommitID)
		if err != nil {
			t.Fatalf("CommitByID() error = %v", err)
		}
		if commit == nil || commit.Hash != plan.Hash {
			t.Fatalf("CommitByID() = %+v, want hash %s", commit, plan.Hash)
		}
		if commit.TreeHash != plan.TreeHash {
			t.Errorf("TreeHash = %s, want %s", commit.TreeHash, plan.TreeHash)
		}

		head, err := d.BranchHead("main")
		if err != nil {
			t.Fatalf("BranchHead() error = %v", err)
		}
		if head == nil || head.CommitID != result.CommitID {
			t.Errorf("BranchHead() = %+v, want commit %d", head, result.CommitID)
		}

		state, err := d.CommitStateByID(result.CommitID)
		if err != nil {
			t.Fatalf("CommitStateByID() error = %v", err)
		}
		if len(state) != 2 {
			t.Fatalf("len(state) = %d, want 2", len(state))
		}
		if state["readme.md"].BlobHash != hashing.SumHex([]byte("hello")) {
			t.Errorf("state[readme.md].BlobHash = %s, want hash of content", state["readme.md"].BlobHash)
		}
		if state["src/main.go"].Mode != 0o644 {
			t.Errorf("state[src/main.go].Mode = %o, want 644", state["src/main.go"].Mode)
		}
	})

	t.Run("deduplicates identical content", func(t *testing.T) {
		d := openTestDB(t)
		plan := buildPlan("main", "", "same content twice", "2026-08-22T12:00:00Z", map[string]string{
			"a.txt": "identical",
			"b.txt": "identical",
		})
		result := mustApply(t, d, plan)
		if result.NewBlobs != 1 {
			t.Errorf("NewBlobs = %d, want 1 for identical content", result.NewBlobs)
		}

		state, err := d.CommitStateByID(result.CommitID)
		if err != nil {
			t.Fatalf("CommitStateByID() error = %v", err)
		}
		if state["a.txt"].BlobID != state["b.txt"].BlobID {
			t.Errorf("blob ids differ: %d vs %d", state["a.txt"].BlobID, state["b.txt"].BlobID)
		}
		if state["a.txt"].AssetID == state["b.txt"].AssetID {
			t.Error("distinct paths share an asset id")
		}
	})

	t.Run("reuses blobs and assets across commits", func(t *testing.T) {
		d := openTestDB(t)
		first := mustApply(t, d, buildPlan("main", "", "first", "2026-08-22T12:00:00Z", map[string]string{
			"keep.txt":   "stable",
			"change.txt": "v1",
		}))

		second := buildPlan("main", first.Hash, "second", "2026-08-22T13:00:00Z", map[string]string{
			"keep.txt":   "stable",
			"change.txt": "v2",
		})
		// Thread asset identity forward the way the engine does.
		for i := range second.Files {
			second.Files[i].AssetID = first.AssetIDs[second.Files[i].Path]
		}
		result := mustApply(t, d, second)

		if result.NewBlobs != 1 {
			t.Errorf("NewBlobs = %d, want 1 (only the changed file)", result.NewBlobs)
		}
		for p, id := range result.AssetIDs {
			if first.AssetIDs[p] != id {
				t.Errorf("asset for %s changed: %d → %d", p, first.AssetIDs[p], id)
			}
		}

		head, err := d.BranchHead("main")
		if err != nil {
			t.Fatalf("BranchHead() error = %v", err)
		}
		if head.CommitID != result.CommitID {
			t.Errorf("branch head = %d, want %d", head.CommitID, result.CommitID)
		}
	})

	t.Run("shared subtrees insert idempotently", func(t *testing.T) {
		d := openTestDB(t)
		files := map[string]string{"lib/a.go": "a", "lib/b.go": "b"}
		first := mustApply(t, d, buildPlan("main", "", "first", "2026-08-22T12:00:00Z", files))

		files["top.txt"] = "new"
		second := buildPlan("main", first.Hash, "second", "2026-08-22T13:00:00Z", files)
		mustApply(t, d, second)

		flat, err := d.FlattenTree(second.TreeHash)
		if err != nil {
			t.Fatalf("FlattenTree() error = %v", err)
		}
		if _, ok := flat["lib/a.go"]; !ok {
			t.Errorf("FlattenTree() missing lib/a.go, got %v", flat)
		}
		if _, ok := flat["top.txt"]; !ok {
			t.Errorf("FlattenTree() missing top.txt, got %v", flat)
		}
		if entry := flat["lib"]; !engine.IsDirMode(entry.Mode) {
			t.Errorf("lib mode = %o, want directory", entry.Mode)
		}
	})
}

func TestBlobBytes(t *testing.T) {
	d := openTestDB(t)
	content := "round trip payload"
	mustApply(t, d, buildPlan("main", "", "blob test", "2026-08-22T12:00:00Z", map[string]string{
		"file.txt": content,
	}))

	hash := hashing.SumHex([]byte(content))
	got, err := d.BlobBytes(hash)
	if err != nil {
		t.Fatalf("BlobBytes() error = %v", err)
	}
	if string(got) != content {
		t.Errorf("BlobBytes() = %q, want %q", got, content)
	}

	exists, err := d.BlobExists(hash)
	if err != nil {
		t.Fatalf("BlobExists() error = %v", err)
	}
	if !exists {
		t.Error("BlobExists() = false for a stored blob")
	}

	if _, err := d.BlobBytes(hashing.SumHex([]byte("never stored"))); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("BlobBytes(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCommitByHashPrefix(t *testing.T) {
	d := openTestDB(t)
	first := mustApply(t, d, buildPlan("main", "", "first", "2026-08-22T12:00:00Z", map[string]string{"a": "1"}))

	t.Run("resolves a unique prefix", func(t *testing.T) {
		got, err := d.CommitByHashPrefix(first.Hash[:8])
		if err != nil {
			t.Fatalf("CommitByHashPrefix() error = %v", err)
		}
		if got == nil || got.Hash != first.Hash {
			t.Errorf("CommitByHashPrefix() = %+v, want %s", got, first.Hash)
		}
	})

	t.Run("picks the smallest hash when ambiguous", func(t *testing.T) {
		second := mustApply(t, d, buildPlan("main", first.Hash, "second", "2026-08-22T13:00:00Z", map[string]string{"a": "2"}))

		got, err := d.CommitByHashPrefix("")
		if err != nil {
			t.Fatalf("CommitByHashPrefix() error = %v", err)
		}
		if got != nil {
			t.Errorf("CommitByHashPrefix(\"\") = %+v, want nil", got)
		}

		// A single hex nibble usually matches several commits; the
		// resolution must be deterministic regardless.
		want := first.Hash
		if second.Hash < want {
			want = second.Hash
		}
		got, err = d.CommitByHashPrefix(want[:1])
		if err != nil {
			t.Fatalf("CommitByHashPrefix() error = %v", err)
		}
		if got == nil {
			t.Fatal("CommitByHashPrefix() = nil for a known nibble")
		}
		if got.Hash != want && got.Hash[:1] == want[:1] && got.Hash > want {
			t.Errorf("CommitByHashPrefix() = %s, want lexically smallest %s", got.Hash, want)
		}
	})

	t.Run("rejects non-hex input", func(t *testing.T) {
		got, err := d.CommitByHashPrefix("zz'; DROP TABLE commits;--")
		if err != nil {
			t.Fatalf("CommitByHashPrefix() error = %v", err)
		}
		if got != nil {
			t.Errorf("CommitByHashPrefix(junk) = %+v, want nil", got)
		}
	})
}

func TestCommitsByBranch(t *testing.T) {
	d := openTestDB(t)
	first := mustApply(t, d, buildPlan("main", "", "first", "2026-08-22T10:00:00Z", map[string]string{"a": "1"}))
	second := mustApply(t, d, buildPlan("main", first.Hash, "second", "2026-08-22T11:00:00Z", map[string]string{"a": "2"}))
	// A side branch shares the first commit and adds its own.
	side := mustApply(t, d, buildPlan("feature/x", first.Hash, "side work", "2026-08-22T12:00:00Z", map[string]string{"a": "3"}))

	t.Run("walks parents from the branch head", func(t *testing.T) {
		commits, err := d.Commits(engine.LogQuery{Branch: "main", Limit: 10})
		if err != nil {
			t.Fatalf("Commits() error = %v", err)
		}
		if len(commits) != 2 {
			t.Fatalf("len(Commits(main)) = %d, want 2", len(commits))
		}
		if commits[0].Hash != second.Hash || commits[1].Hash != first.Hash {
			t.Errorf("Commits(main) order = %s, %s; want newest first", commits[0].Hash, commits[1].Hash)
		}
	})

	t.Run("side branch sees shared ancestry", func(t *testing.T) {
		commits, err := d.Commits(engine.LogQuery{Branch: "feature/x", Limit: 10})
		if err != nil {
			t.Fatalf("Commits() error = %v", err)
		}
		if len(commits) != 2 {
			t.Fatalf("len(Commits(feature/x)) = %d, want 2", len(commits))
		}
		if commits[0].Hash != side.Hash {
			t.Errorf("Commits(feature/x)[0] = %s, want %s", commits[0].Hash, side.Hash)
		}
	})

	t.Run("unfiltered pages over everything", func(t *testing.T) {
		commits, err := d.Commits(engine.LogQuery{Limit: 2})
		if err != nil {
			t.Fatalf("Commits() error = %v", err)
		}
		if len(commits) != 2 {
			t.Fatalf("len(Commits()) = %d, want limit 2", len(commits))
		}
		page2, err := d.Commits(engine.LogQuery{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("Commits() error = %v", err)
		}
		if len(page2) != 1 {
			t.Errorf("len(page 2) = %d, want 1", len(page2))
		}
	})
}

func TestManifestPreview(t *testing.T) {
	d := openTestDB(t)
	result := mustApply(t, d, buildPlan("main", "", "many files", "2026-08-22T12:00:00Z", map[string]string{
		"a.txt": "1", "b.txt": "2", "c.txt": "3", "d.txt": "4",
	}))

	files, total, err := d.ManifestPreview(result.CommitID, 2)
	if err != nil {
		t.Fatalf("ManifestPreview() error = %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(files) != 2 || files[0] != "a.txt" || files[1] != "b.txt" {
		t.Errorf("files = %v, want [a.txt b.txt]", files)
	}
}

func TestSeasonRollover(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".lys")
	january := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

	winter := openTestDBAt(t, dir, january)
	result := mustApply(t, winter, buildPlan("main", "", "winter work", "2026-01-10T09:00:00Z", map[string]string{
		"frozen.txt": "ice",
	}))
	winterHead, err := winter.BranchHead("main")
	if err != nil {
		t.Fatalf("BranchHead() error = %v", err)
	}
	winter.Close()

	may := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	spring := openTestDBAt(t, dir, may)

	if spring.OldPath() == "" {
		t.Fatal("OldPath() empty, want winter database attached")
	}

	t.Run("branch head falls back to the previous season", func(t *testing.T) {
		head, err := spring.BranchHead("main")
		if err != nil {
			t.Fatalf("BranchHead() error = %v", err)
		}
		if head == nil {
			t.Fatal("BranchHead() = nil after rollover")
		}
		if !head.Historical {
			t.Error("Historical = false for a previous-season head")
		}
		if head.Hash != winterHead.Hash {
			t.Errorf("head hash = %s, want %s", head.Hash, winterHead.Hash)
		}
	})

	t.Run("historical state reads the old manifest against the shared store", func(t *testing.T) {
		head, err := spring.BranchHead("main")
		if err != nil {
			t.Fatalf("BranchHead() error = %v", err)
		}
		state, err := spring.CommitStateFor(head)
		if err != nil {
			t.Fatalf("CommitStateFor() error = %v", err)
		}
		entry, ok := state["frozen.txt"]
		if !ok {
			t.Fatalf("state missing frozen.txt: %v", state)
		}
		if entry.BlobHash != hashing.SumHex([]byte("ice")) {
			t.Errorf("BlobHash = %s, want hash of winter content", entry.BlobHash)
		}
		data, err := spring.BlobBytes(entry.BlobHash)
		if err != nil {
			t.Fatalf("BlobBytes() error = %v", err)
		}
		if string(data) != "ice" {
			t.Errorf("BlobBytes() = %q, want %q", data, "ice")
		}
	})

	t.Run("next commit chains onto the historical head", func(t *testing.T) {
		next := buildPlan("main", result.Hash, "spring work", "2026-05-01T09:00:00Z", map[string]string{
			"frozen.txt": "melted",
		})
		springResult := mustApply(t, spring, next)

		head, err := spring.BranchHead("main")
		if err != nil {
			t.Fatalf("BranchHead() error = %v", err)
		}
		if head.Historical {
			t.Error("Historical = true after committing in the new season")
		}
		if head.CommitID != springResult.CommitID {
			t.Errorf("head = %d, want %d", head.CommitID, springResult.CommitID)
		}
	})
}

func TestPrune(t *testing.T) {
	d := openTestDB(t)

	// One stale commit far past retention and one recent commit whose
	// content must survive.
	stale := mustApply(t, d, buildPlan("main", "", "ancient", "2020-01-01T00:00:00Z", map[string]string{
		"old.txt": "forgotten content",
	}))
	fresh := mustApply(t, d, buildPlan("main", stale.Hash, "recent", "2026-08-01T00:00:00Z", map[string]string{
		"new.txt": "kept content",
	}))

	report, err := d.Prune(context.Background(), "2024-08-22T00:00:00Z")
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if report.Commits != 1 {
		t.Errorf("Commits pruned = %d, want 1", report.Commits)
	}
	if report.Blobs != 1 {
		t.Errorf("Blobs pruned = %d, want 1", report.Blobs)
	}

	if c, err := d.CommitByID(stale.CommitID); err != nil || c != nil {
		t.Errorf("stale commit still present: %+v (err %v)", c, err)
	}
	if c, err := d.CommitByID(fresh.CommitID); err != nil || c == nil {
		t.Errorf("fresh commit missing (err %v)", err)
	}

	if _, err := d.BlobBytes(hashing.SumHex([]byte("forgotten content"))); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("stale blob error = %v, want ErrNotFound", err)
	}
	if _, err := d.BlobBytes(hashing.SumHex([]byte("kept content"))); err != nil {
		t.Errorf("fresh blob error = %v, want nil", err)
	}

	// The cascade also cleared the stale manifest rows.
	if _, total, err := d.ManifestPreview(stale.CommitID, 5); err != nil || total != 0 {
		t.Errorf("stale manifest total = %d (err %v), want 0", total, err)
	}
}

func TestPruneOrphans(t *testing.T) {
	d := openTestDB(t)
	mustApply(t, d, buildPlan("main", "", "base", "2026-08-22T12:00:00Z", map[string]string{
		"kept.txt": "kept",
	}))

	// Orphan a blob by inserting it without any tree reference.
	if _, err := d.EnsureBlobs([]database.BlobData{
		{Hash: hashing.SumHex([]byte("dangling")), Content: []byte("dangling"), Path: "gone.bin"},
	}); err != nil {
		t.Fatalf("EnsureBlobs() error = %v", err)
	}

	report, err := d.PruneOrphans(context.Background())
	if err != nil {
		t.Fatalf("PruneOrphans() error = %v", err)
	}
	if report.Blobs != 1 {
		t.Errorf("Blobs pruned = %d, want 1", report.Blobs)
	}
	if _, err := d.BlobBytes(hashing.SumHex([]byte("kept"))); err != nil {
		t.Errorf("referenced blob was pruned: %v", err)
	}
}

func TestLegacyBlobMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".lys")
	d := openTestDBAt(t, dir, testNow)
	result := mustApply(t, d, buildPlan("main", "", "seed", "2026-08-22T12:00:00Z", map[string]string{
		"seed.txt": "seed",
	}))
	hotPath := d.HotPath()
	d.Close()

	// Recreate the pre-split layout: blob and asset tables living inside
	// the seasonal database, referenced by manifest ids.
	raw, err := sql.Open("sqlite3", hotPath)
	if err != nil {
		t.Fatalf("opening hot database raw: %v", err)
	}
	legacyHash := hashing.SumHex([]byte("legacy content"))
	stmts := []string{
		`CREATE TABLE blobs (id INTEGER PRIMARY KEY AUTOINCREMENT, hash TEXT NOT NULL UNIQUE,
		 content BLOB NOT NULL, size INTEGER NOT NULL DEFAULT 0,
		 mime_type TEXT NOT NULL DEFAULT 'application/octet-stream')`,
		`INSERT INTO blobs (hash, content, size) VALUES ('` + legacyHash + `', X'6c656761637920636f6e74656e74', 14)`,
	}
	for _, s := range stmts {
		if _, err := raw.Exec(s); err != nil {
			raw.Close()
			t.Fatalf("seeding legacy table: %v", err)
		}
	}
	raw.Close()

	reopened := openTestDBAt(t, dir, testNow)

	exists, err := reopened.BlobExists(legacyHash)
	if err != nil {
		t.Fatalf("BlobExists() error = %v", err)
	}
	if !exists {
		t.Error("legacy blob not folded into the store")
	}

	// The legacy table is gone from the hot database.
	raw, err = sql.Open("sqlite3", hotPath)
	if err != nil {
		t.Fatalf("reopening hot database raw: %v", err)
	}
	defer raw.Close()
	var name string
	err = raw.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'blobs'").Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("legacy blobs table still present (err %v)", err)
	}

	// Pre-migration commits still resolve their content.
	state, err := reopened.CommitStateByID(result.CommitID)
	if err != nil {
		t.Fatalf("CommitStateByID() error = %v", err)
	}
	if state["seed.txt"].BlobHash != hashing.SumHex([]byte("seed")) {
		t.Errorf("seed state lost after migration: %+v", state["seed.txt"])
	}
}

func TestOperationsLog(t *testing.T) {
	d := openTestDB(t)
	for _, op := range []string{"commit", "checkout", "prune"} {
		if err := d.RecordOperation(op, `{"branch":"main"}`, "2026-08-22T12:00:00Z"); err != nil {
			t.Fatalf("RecordOperation(%s) error = %v", op, err)
		}
	}

	ops, err := d.Operations(2)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(Operations(2)) = %d, want 2", len(ops))
	}
	if ops[0].Type != "prune" || ops[1].Type != "checkout" {
		t.Errorf("Operations() order = %s, %s; want newest first", ops[0].Type, ops[1].Type)
	}
}

func TestTags(t *testing.T) {
	d := openTestDB(t)
	result := mustApply(t, d, buildPlan("main", "", "taggable", "2026-08-22T12:00:00Z", map[string]string{"a": "1"}))

	if err := d.CreateTag("v1.0.0", result.CommitID, "first release", "2026-08-22T12:30:00Z"); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if err := d.CreateTag("v1.0.0", result.CommitID, "dup", "2026-08-22T12:31:00Z"); err == nil {
		t.Error("CreateTag(duplicate) error = nil, want unique violation")
	}

	tags, err := d.Tags()
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("len(Tags()) = %d, want 1", len(tags))
	}
	if tags[0].Name != "v1.0.0" || tags[0].CommitHash != result.Hash {
		t.Errorf("Tags()[0] = %+v, want v1.0.0 at %s", tags[0], result.Hash)
	}
}

func TestBranchOps(t *testing.T) {
	d := openTestDB(t)
	result := mustApply(t, d, buildPlan("main", "", "base", "2026-08-22T12:00:00Z", map[string]string{"a": "1"}))

	if err := d.CreateBranch("feature/topic", result.CommitID); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if err := d.CreateBranch("feature/topic", result.CommitID); err == nil {
		t.Error("CreateBranch(duplicate) error = nil, want unique violation")
	}

	branches, err := d.Branches()
	if err != nil {
		t.Fatalf("Branches() error = %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("len(Branches()) = %d, want 2", len(branches))
	}

	b, err := d.BranchByName("feature/topic")
	if err != nil {
		t.Fatalf("BranchByName() error = %v", err)
	}
	if b == nil || b.HeadCommitID != result.CommitID {
		t.Errorf("BranchByName() = %+v, want head %d", b, result.CommitID)
	}

	if err := d.DeleteBranch("feature/topic"); err != nil {
		t.Fatalf("DeleteBranch() error = %v", err)
	}
	b, err = d.BranchByName("feature/topic")
	if err != nil {
		t.Fatalf("BranchByName() error = %v", err)
	}
	if b != nil {
		t.Errorf("BranchByName() = %+v after delete, want nil", b)
	}
}
