package engine

import (
	"fmt"
	"strings"
)

const (
	featurePrefix = "feature/"
	hotfixPrefix  = "hotfix/"
)

// CreateBranch creates a branch pointing at the current head commit. The
// working tree and current branch are left untouched.
func (e *Engine) CreateBranch(name string) error {
	if err := validateRefName(name); err != nil {
		return err
	}

	info, err := e.Head()
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("creating branch %s: no commits yet: %w", name, ErrRefNotFound)
	}
	if info.Historical {
		return fmt.Errorf("creating branch %s: %w", name, ErrHistoricalHead)
	}

	if err := e.db.CreateBranch(name, info.CommitID); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	e.log.Info("branch created", "name", name, "head", info.Hash)
	return nil
}

// Branches lists every branch with its head commit.
func (e *Engine) Branches() ([]BranchInfo, error) {
	branches, err := e.db.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return branches, nil
}

// CreateTag pins the current head commit under an immutable name.
func (e *Engine) CreateTag(name, description string) error {
	if err := validateRefName(name); err != nil {
		return err
	}

	info, err := e.Head()
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("tagging: no commits yet: %w", ErrRefNotFound)
	}
	if info.Historical {
		return fmt.Errorf("tagging %s: %w", name, ErrHistoricalHead)
	}

	createdAt := e.clock.Now().UTC().Format(timestampLayout)
	if err := e.db.CreateTag(name, info.CommitID, description, createdAt); err != nil {
		return fmt.Errorf("creating tag %s: %w", name, err)
	}
	e.log.Info("tag created", "name", name, "commit", info.Hash)
	return nil
}

// Tags lists every tag with the commit it pins.
func (e *Engine) Tags() ([]TagInfo, error) {
	tags, err := e.db.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// StartFeature creates feature/<name> at the current head and switches
// the current branch to it. The working tree does not change because the
// new branch shares the head commit.
func (e *Engine) StartFeature(name string) (string, error) {
	return e.startFlow(featurePrefix, name, false)
}

// FinishFeature fast-forwards main to the feature head and deletes the
// feature branch.
func (e *Engine) FinishFeature(name string) error {
	return e.finishFlow(featurePrefix, name)
}

// StartHotfix creates hotfix/<name>. Unlike features, hotfixes must
// branch from main.
func (e *Engine) StartHotfix(name string) (string, error) {
	return e.startFlow(hotfixPrefix, name, true)
}

// FinishHotfix fast-forwards main to the hotfix head and deletes the
// hotfix branch.
func (e *Engine) FinishHotfix(name string) error {
	return e.finishFlow(hotfixPrefix, name)
}

func (e *Engine) startFlow(prefix, name string, mainOnly bool) (string, error) {
	if err := validateRefName(name); err != nil {
		return "", err
	}

	current, err := e.CurrentBranch()
	if err != nil {
		return "", err
	}
	if mainOnly && current != DefaultBranch {
		return "", ErrNotFromMain
	}

	full := prefix + name
	if err := e.CreateBranch(full); err != nil {
		return "", err
	}
	if err := e.db.SetConfigValue(configCurrentBranch, full); err != nil {
		return "", fmt.Errorf("switching to %s: %w", full, err)
	}
	return full, nil
}

// finishFlow performs the fast-forward merge shared by feature and
// hotfix: main's head becomes the flow branch head, then the flow branch
// is deleted.
func (e *Engine) finishFlow(prefix, name string) error {
	full := prefix + name
	branch, err := e.db.BranchByName(full)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", full, err)
	}
	if branch == nil {
		return fmt.Errorf("branch %s: %w", full, ErrRefNotFound)
	}

	if err := e.db.SetBranchHead(DefaultBranch, branch.HeadCommitID); err != nil {
		return fmt.Errorf("fast-forwarding %s: %w", DefaultBranch, err)
	}
	if err := e.db.DeleteBranch(full); err != nil {
		return fmt.Errorf("deleting %s: %w", full, err)
	}

	current, err := e.CurrentBranch()
	if err != nil {
		return err
	}
	if current == full {
		if err := e.db.SetConfigValue(configCurrentBranch, DefaultBranch); err != nil {
			return fmt.Errorf("switching back to %s: %w", DefaultBranch, err)
		}
	}

	e.log.Info("flow finished", "branch", full, "merged_into", DefaultBranch)
	return nil
}

func validateRefName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrBadRefName)
	}
	if name == DetachedBranch {
		return fmt.Errorf("%s is reserved: %w", name, ErrBadRefName)
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("%q contains whitespace: %w", name, ErrBadRefName)
	}
	return nil
}
