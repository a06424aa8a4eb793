package engine

import "context"

// PlannedFile is one working-tree path captured by a commit plan. AssetID
// zero means a new asset row must be allocated under AssetUUID.
type PlannedFile struct {
	Path      string
	Hash      string
	Mode      int64
	Size      int64
	AssetID   int64
	AssetUUID string
}

// CommitPlan carries everything the store needs to persist one commit in
// a single transaction. Content supplies the original bytes of a path and
// is only invoked for blobs not already present.
type CommitPlan struct {
	Branch     string
	Author     string
	Message    string
	Timestamp  string
	ParentHash string
	TreeHash   string
	Hash       string
	Signature  string
	Nodes      []TreeNode
	Files      []PlannedFile
	Content    func(path string) ([]byte, error)
}

// CommitResult reports the persisted commit. AssetIDs maps each manifest
// path to its asset row so callers can thread identity into a follow-up
// commit.
type CommitResult struct {
	CommitID int64
	Hash     string
	NewBlobs int
	AssetIDs map[string]int64
}

// Database is the persistence surface the engine depends on. The SQLite
// implementation lives in internal/database.
type Database interface {
	// Config and refs.
	ConfigValue(key string) (string, error)
	SetConfigValue(key, value string) error
	BranchByName(name string) (*BranchInfo, error)
	Branches() ([]BranchInfo, error)
	CreateBranch(name string, headCommitID int64) error
	SetBranchHead(name string, headCommitID int64) error
	DeleteBranch(name string) error
	CreateTag(name string, commitID int64, description, createdAt string) error
	Tags() ([]TagInfo, error)

	// Commits and recorded state. BranchHead and CommitStateFor fall back
	// to the attached previous-season database when the hot one has no
	// matching rows.
	BranchHead(name string) (*HeadInfo, error)
	CommitByID(id int64) (*Commit, error)
	CommitByHashPrefix(prefix string) (*Commit, error)
	AllCommits(ctx context.Context) ([]Commit, error)
	Commits(q LogQuery) ([]Commit, error)
	CommitStateByID(commitID int64) (map[string]FileState, error)
	CommitStateFor(head *HeadInfo) (map[string]FileState, error)
	ManifestPreview(commitID int64, limit int) ([]string, int, error)
	ApplyCommit(ctx context.Context, plan *CommitPlan) (*CommitResult, error)

	// Object store and tree index.
	BlobBytes(hash string) ([]byte, error)
	BlobExists(hash string) (bool, error)
	TreeFileRefs(ctx context.Context) ([]TreeRef, error)
	FlattenTree(treeHash string) (map[string]TreeEntry, error)

	// Operations log and maintenance.
	RecordOperation(opType, viewState, timestamp string) error
	Operations(limit int) ([]OperationRecord, error)
	Prune(ctx context.Context, cutoff string) (*PruneReport, error)
	PruneOrphans(ctx context.Context) (*PruneReport, error)
}
