package engine_test

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/hackia/lys-sub000/internal/testutil"
)

func TestHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook commands in this test are POSIX shell")
	}
	ctx := context.Background()

	t.Run("a failing command aborts the commit with its output", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.WriteFile(t, "a.txt", "alpha\n")
		r.WriteFile(t, "lys", "echo lint errors found; exit 1\n")

		_, err := r.Eng.Commit(ctx, "Test Author", "should not land")
		if err == nil {
			t.Fatal("Commit() succeeded despite a failing hook")
		}
		if !strings.Contains(err.Error(), "lint errors found") {
			t.Errorf("error = %v, want the hook output included", err)
		}

		head, err := r.Eng.Head()
		if err != nil {
			t.Fatalf("Head() error = %v", err)
		}
		if head != nil {
			t.Errorf("Head() = %+v, want nil: the failed hook must block the commit", head)
		}
	})

	t.Run("comments and blank lines are skipped", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.WriteFile(t, "a.txt", "alpha\n")
		r.WriteFile(t, "lys", "# pre-commit checks\n\ntrue\n")

		summary := r.Commit(t, "hooked commit")
		// The hook file is a tracked project file like any other.
		if summary.Files != 2 {
			t.Errorf("Files = %d, want the source file and the hook file", summary.Files)
		}
	})

	t.Run("commands run inside the workspace root", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.WriteFile(t, "a.txt", "alpha\n")
		r.WriteFile(t, "lys", "test -f a.txt\n")

		// Succeeds only when the hook sees the working tree as its cwd.
		r.Commit(t, "hook checked the tree")
	})

	t.Run("a commit without a hook file runs no hooks", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.WriteFile(t, "a.txt", "alpha\n")
		r.Commit(t, "no hooks present")
	})
}
