package engine

// Commit is one entry in the hash-linked history chain. Timestamp is an
// RFC 3339 UTC string, so lexicographic comparisons in SQL match
// chronological order.
type Commit struct {
	ID         int64
	Hash       string
	ParentHash string
	TreeHash   string
	Author     string
	Message    string
	Timestamp  string
	Signature  string
}

// UnsignedSignature marks commits created without a signing identity.
const UnsignedSignature = "UNSIGNED"

// Signed reports whether the commit carries a real signature.
func (c *Commit) Signed() bool {
	return c.Signature != "" && c.Signature != UnsignedSignature
}

// ShortHash returns the abbreviated commit hash used in listings.
func (c *Commit) ShortHash() string {
	if len(c.Hash) < 12 {
		return c.Hash
	}
	return c.Hash[:12]
}

// TreeNode is one row of the Merkle tree index: an edge from a directory
// hash to one of its named children.
type TreeNode struct {
	Parent string
	Name   string
	Hash   string
	Mode   int64
	Size   int64
}

// TreeEntry is a flattened tree row keyed by full path.
type TreeEntry struct {
	Hash string
	Mode int64
	Size int64
}

// FileState is the recorded state of one path in a commit manifest.
type FileState struct {
	AssetID  int64
	BlobID   int64
	BlobHash string
	Mode     int64
}

// ChangeKind classifies a working-tree path relative to the current head.
type ChangeKind string

const (
	ChangeNew      ChangeKind = "new"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// StatusEntry is one changed path. AssetID is set for paths that existed
// in the head commit.
type StatusEntry struct {
	Path    string
	Kind    ChangeKind
	AssetID int64
}

// BranchInfo describes a named ref and the commit it points at.
type BranchInfo struct {
	ID           int64
	Name         string
	HeadCommitID int64
}

// TagInfo describes an immutable named ref.
type TagInfo struct {
	ID          int64
	Name        string
	CommitID    int64
	CommitHash  string
	Description string
	CreatedAt   string
}

// HeadInfo resolves a branch head. Historical heads live in the attached
// previous-season database; their CommitID is only meaningful there.
type HeadInfo struct {
	CommitID   int64
	Hash       string
	TreeHash   string
	Historical bool
}

// LogQuery selects a page of history. Branch narrows the walk to commits
// reachable from that branch head; empty means all commits.
type LogQuery struct {
	Branch string
	Limit  int
	Offset int
}

// LogEntry pairs a commit with a preview of the files it recorded.
type LogEntry struct {
	Commit     Commit
	Files      []string
	TotalFiles int
}

// OperationRecord is one row of the operations log.
type OperationRecord struct {
	ID        int64
	Type      string
	ViewState string
	Timestamp string
}

// CommitSummary reports the outcome of a commit.
type CommitSummary struct {
	CommitID   int64
	Hash       string
	Branch     string
	Files      int
	NewBlobs   int
	Signed     bool
}

// CheckoutSummary reports the outcome of a checkout.
type CheckoutSummary struct {
	Ref      string
	Branch   string
	Hash     string
	Written  int
	Removed  int
	Detached bool
}

// FileDiff is the rendered diff for one changed path.
type FileDiff struct {
	Path   string
	Kind   ChangeKind
	Binary bool
	Text   string
}

// AuditReport summarizes a history audit.
type AuditReport struct {
	Total     int
	Valid     int
	Unsigned  int
	Corrupted []string
}

// VerifyReport summarizes an object store check.
type VerifyReport struct {
	Checked   int
	Missing   int
	Corrupted int
}

// PruneReport summarizes a retention pass.
type PruneReport struct {
	Commits   int64
	TreeNodes int64
	Blobs     int64
}

// TreeRef is one blob reference recorded by the tree index.
type TreeRef struct {
	Hash string
	Mode int64
}
