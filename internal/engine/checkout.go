package engine

import (
	"context"
	"fmt"
)

// resolveRef turns a user-supplied ref into a commit. Branch names win
// over hash prefixes; ambiguous prefixes resolve to the lexically
// smallest matching hash.
func (e *Engine) resolveRef(ref string) (*Commit, string, error) {
	if branch, err := e.db.BranchByName(ref); err != nil {
		return nil, "", fmt.Errorf("looking up branch %s: %w", ref, err)
	} else if branch != nil {
		commit, err := e.db.CommitByID(branch.HeadCommitID)
		if err != nil {
			return nil, "", fmt.Errorf("loading head of %s: %w", ref, err)
		}
		if commit == nil {
			return nil, "", fmt.Errorf("branch %s: %w", ref, ErrRefNotFound)
		}
		return commit, branch.Name, nil
	}

	commit, err := e.db.CommitByHashPrefix(ref)
	if err != nil {
		return nil, "", fmt.Errorf("resolving %s: %w", ref, err)
	}
	if commit == nil {
		return nil, "", fmt.Errorf("ref %s: %w", ref, ErrRefNotFound)
	}
	return commit, "", nil
}

// Checkout moves the working tree to another branch or commit. It
// refuses to run over uncommitted changes, rewrites only paths whose
// content differs, and removes paths absent from the target.
func (e *Engine) Checkout(ctx context.Context, ref string) (*CheckoutSummary, error) {
	return e.checkout(ctx, ref, false)
}

// ForceCheckout rewrites the working tree to match ref without the
// clean-tree guard. Local modifications are overwritten; untracked
// files are left alone.
func (e *Engine) ForceCheckout(ctx context.Context, ref string) (*CheckoutSummary, error) {
	return e.checkout(ctx, ref, true)
}

func (e *Engine) checkout(ctx context.Context, ref string, force bool) (*CheckoutSummary, error) {
	current, _, err := e.headState()
	if err != nil {
		return nil, err
	}

	if !force {
		files, err := e.scan(ctx)
		if err != nil {
			return nil, err
		}
		if len(classify(files, current)) > 0 {
			return nil, ErrDirtyWorktree
		}
	}

	commit, branch, err := e.resolveRef(ref)
	if err != nil {
		return nil, err
	}

	target, err := e.db.CommitStateByID(commit.ID)
	if err != nil {
		return nil, fmt.Errorf("loading state of %s: %w", commit.ShortHash(), err)
	}
	if len(target) == 0 && commit.TreeHash != "" {
		target, err = e.stateFromTree(commit.TreeHash)
		if err != nil {
			return nil, err
		}
	}

	summary := &CheckoutSummary{Ref: ref, Hash: commit.Hash, Branch: branch, Detached: branch == ""}

	for path, entry := range target {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prev, ok := current[path]
		if !force && ok && prev.BlobHash == entry.BlobHash {
			continue
		}
		data, err := e.db.BlobBytes(entry.BlobHash)
		if err != nil {
			return nil, fmt.Errorf("loading blob for %s: %w", path, err)
		}
		mode := entry.Mode
		if mode == 0 {
			mode = DefaultFileMode
		}
		if err := e.ws.WriteFile(path, data, mode); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		summary.Written++
	}

	for path := range current {
		if _, ok := target[path]; ok {
			continue
		}
		if err := e.ws.Remove(path); err != nil {
			return nil, fmt.Errorf("removing %s: %w", path, err)
		}
		summary.Removed++
	}

	branchValue := branch
	if branchValue == "" {
		branchValue = DetachedBranch
	}
	if err := e.db.SetConfigValue(configCurrentBranch, branchValue); err != nil {
		return nil, fmt.Errorf("recording current branch: %w", err)
	}
	if err := e.db.SetConfigValue(configCurrentCommit, commit.Hash); err != nil {
		return nil, fmt.Errorf("recording current commit: %w", err)
	}

	e.log.Info("checkout complete",
		"ref", ref,
		"hash", commit.ShortHash(),
		"written", summary.Written,
		"removed", summary.Removed,
	)
	return summary, nil
}

// Restore rewrites a single path from the head commit, discarding local
// modifications or recreating a deleted file.
func (e *Engine) Restore(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state, info, err := e.headState()
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("restore %s: no commits yet: %w", path, ErrNotFound)
	}

	entry, ok := state[path]
	if !ok {
		return fmt.Errorf("restore %s: not in head commit: %w", path, ErrNotFound)
	}

	data, err := e.db.BlobBytes(entry.BlobHash)
	if err != nil {
		return fmt.Errorf("loading blob for %s: %w", path, err)
	}
	mode := entry.Mode
	if mode == 0 {
		mode = DefaultFileMode
	}
	if err := e.ws.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	e.log.Info("file restored", "path", path, "bytes", len(data))
	return nil
}
