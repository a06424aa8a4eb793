package engine

import "errors"

var (
	// ErrNothingToCommit is returned when the working tree matches the head.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrDirtyWorktree is returned when an operation needs a clean tree.
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

	// ErrRefNotFound is returned when a branch, tag, or hash prefix does
	// not resolve to a commit.
	ErrRefNotFound = errors.New("reference not found")

	// ErrNotFound is returned for missing blobs, paths, or rows.
	ErrNotFound = errors.New("not found")

	// ErrDetachedHead is returned when a commit is attempted without a
	// current branch.
	ErrDetachedHead = errors.New("not on a branch")

	// ErrNotFromMain is returned when a hotfix is started away from main.
	ErrNotFromMain = errors.New("hotfix must start from main")

	// ErrMessageTooShort rejects commit messages under three characters.
	ErrMessageTooShort = errors.New("commit message must be at least 3 characters")

	// ErrBadRefName rejects empty, reserved, or whitespace ref names.
	ErrBadRefName = errors.New("invalid ref name")

	// ErrHistoricalHead is returned when a ref operation needs the head
	// commit in the current season database.
	ErrHistoricalHead = errors.New("branch head belongs to a previous season; commit first")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
