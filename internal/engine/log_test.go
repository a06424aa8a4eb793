package engine_test

import (
	"fmt"
	"testing"

	"github.com/hackia/lys-sub000/internal/engine"
	"github.com/hackia/lys-sub000/internal/testutil"
)

func TestLog(t *testing.T) {
	t.Run("pages newest first with a default limit", func(t *testing.T) {
		r := testutil.NewRepo(t)
		for i := 1; i <= 21; i++ {
			r.WriteFile(t, "counter.txt", fmt.Sprintf("tick %d\n", i))
			r.Commit(t, fmt.Sprintf("change %d", i))
		}

		entries, err := r.Eng.Log(engine.LogQuery{})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(entries) != 20 {
			t.Fatalf("Log() returned %d entries, want the default limit of 20", len(entries))
		}
		if entries[0].Commit.Message != "change 21" {
			t.Errorf("first entry = %q, want the newest commit", entries[0].Commit.Message)
		}

		rest, err := r.Eng.Log(engine.LogQuery{Limit: 20, Offset: 20})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(rest) != 1 || rest[0].Commit.Message != "change 1" {
			t.Errorf("second page = %+v, want only the first commit", rest)
		}

		window, err := r.Eng.Log(engine.LogQuery{Limit: 5, Offset: 5})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(window) != 5 {
			t.Fatalf("offset window has %d entries, want 5", len(window))
		}
		if window[0].Commit.Message != "change 16" {
			t.Errorf("offset window starts at %q, want change 16", window[0].Commit.Message)
		}
	})

	t.Run("previews at most five files per commit", func(t *testing.T) {
		r := testutil.NewRepo(t)
		for i := 1; i <= 7; i++ {
			r.WriteFile(t, fmt.Sprintf("file%d.txt", i), fmt.Sprintf("content %d\n", i))
		}
		r.Commit(t, "bulk import")

		entries, err := r.Eng.Log(engine.LogQuery{})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		entry := entries[0]
		if entry.TotalFiles != 7 {
			t.Errorf("TotalFiles = %d, want 7", entry.TotalFiles)
		}
		if len(entry.Files) != 5 {
			t.Fatalf("Files preview has %d names, want 5", len(entry.Files))
		}
		if entry.Files[0] != "file1.txt" || entry.Files[4] != "file5.txt" {
			t.Errorf("preview = %v, want the first five paths in order", entry.Files)
		}
	})

	t.Run("narrows to commits reachable from a branch", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.WriteFile(t, "base.txt", "base\n")
		r.Commit(t, "groundwork")

		if _, err := r.Eng.StartFeature("search"); err != nil {
			t.Fatalf("StartFeature() error = %v", err)
		}
		r.WriteFile(t, "search.txt", "v1\n")
		r.Commit(t, "search scaffolding")
		r.WriteFile(t, "search.txt", "v2\n")
		r.Commit(t, "search ranking")

		main, err := r.Eng.Log(engine.LogQuery{Branch: engine.DefaultBranch})
		if err != nil {
			t.Fatalf("Log(main) error = %v", err)
		}
		if len(main) != 1 || main[0].Commit.Message != "groundwork" {
			t.Errorf("main history = %d entries, want only the commit before the feature", len(main))
		}

		feature, err := r.Eng.Log(engine.LogQuery{Branch: "feature/search"})
		if err != nil {
			t.Fatalf("Log(feature/search) error = %v", err)
		}
		if len(feature) != 3 {
			t.Fatalf("feature history = %d entries, want the full chain", len(feature))
		}
		if feature[0].Commit.Message != "search ranking" || feature[2].Commit.Message != "groundwork" {
			t.Errorf("feature history order = %q .. %q, want newest first back to the root",
				feature[0].Commit.Message, feature[2].Commit.Message)
		}

		if err := r.Eng.FinishFeature("search"); err != nil {
			t.Fatalf("FinishFeature() error = %v", err)
		}
		merged, err := r.Eng.Log(engine.LogQuery{Branch: engine.DefaultBranch})
		if err != nil {
			t.Fatalf("Log(main) error = %v", err)
		}
		if len(merged) != 3 {
			t.Errorf("main history after the merge = %d entries, want 3", len(merged))
		}
	})

	t.Run("returns nothing for an unknown branch", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.WriteFile(t, "a.txt", "one\n")
		r.Commit(t, "initial import")

		entries, err := r.Eng.Log(engine.LogQuery{Branch: "ghost"})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Log(ghost) = %d entries, want none", len(entries))
		}
	})
}
