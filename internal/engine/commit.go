package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackia/lys-sub000/internal/hashing"
)

// CommitHash derives the chained commit hash. The parent hash of the
// first commit is the empty string.
func CommitHash(parentHash, author, message, timestamp string) string {
	return hashing.SumHex([]byte(parentHash + author + message + timestamp))
}

// assignAssetUUIDs names every file that needs a fresh asset row before
// the plan reaches the store.
func (e *Engine) assignAssetUUIDs(files []PlannedFile) {
	for i := range files {
		if files[i].AssetID == 0 && files[i].AssetUUID == "" {
			files[i].AssetUUID = e.ids.New()
		}
	}
}

// signatureFor signs a commit hash, or records the unsigned sentinel when
// no identity is available.
func (e *Engine) signatureFor(hash string) (string, error) {
	if e.signer == nil || !e.signer.Available() {
		return UnsignedSignature, nil
	}
	sig, err := e.signer.Sign([]byte(hash))
	if err != nil {
		return "", fmt.Errorf("signing commit: %w", err)
	}
	return sig, nil
}

// Commit snapshots the working tree onto the current branch. It runs
// workspace hooks first, refuses detached heads and empty change sets,
// and persists everything in one transaction.
func (e *Engine) Commit(ctx context.Context, author, message string) (*CommitSummary, error) {
	if len(strings.TrimSpace(message)) < 3 {
		return nil, ErrMessageTooShort
	}
	if author == "" {
		author = "unknown"
	}

	if err := e.runHooks(ctx); err != nil {
		return nil, err
	}

	branch, err := e.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if branch == DetachedBranch {
		return nil, ErrDetachedHead
	}

	state, info, err := e.headState()
	if err != nil {
		return nil, err
	}

	files, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(classify(files, state)) == 0 {
		return nil, ErrNothingToCommit
	}

	planned := make([]PlannedFile, len(files))
	for i, f := range files {
		pf := PlannedFile{Path: f.Path, Hash: f.Hash, Mode: f.Mode, Size: f.Size}
		if prev, ok := state[f.Path]; ok {
			pf.AssetID = prev.AssetID
		}
		planned[i] = pf
	}
	e.assignAssetUUIDs(planned)

	parentHash := ""
	if info != nil {
		parentHash = info.Hash
	}
	timestamp := e.clock.Now().UTC().Format(timestampLayout)
	hash := CommitHash(parentHash, author, message, timestamp)
	signature, err := e.signatureFor(hash)
	if err != nil {
		return nil, err
	}

	treeHash, nodes := BuildTree(planned)
	plan := &CommitPlan{
		Branch:     branch,
		Author:     author,
		Message:    message,
		Timestamp:  timestamp,
		ParentHash: parentHash,
		TreeHash:   treeHash,
		Hash:       hash,
		Signature:  signature,
		Nodes:      nodes,
		Files:      planned,
		Content:    e.ws.ReadFile,
	}

	result, err := e.db.ApplyCommit(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("persisting commit: %w", err)
	}
	if err := e.db.SetConfigValue(configCurrentCommit, result.Hash); err != nil {
		return nil, fmt.Errorf("recording head: %w", err)
	}

	e.log.Info("commit created",
		"branch", branch,
		"hash", result.Hash,
		"files", len(planned),
		"new_blobs", result.NewBlobs,
	)
	return &CommitSummary{
		CommitID: result.CommitID,
		Hash:     result.Hash,
		Branch:   branch,
		Files:    len(planned),
		NewBlobs: result.NewBlobs,
		Signed:   signature != UnsignedSignature,
	}, nil
}

// Prebuilt describes a commit whose tree was indexed outside the normal
// working-tree walk, such as history replayed from another system.
type Prebuilt struct {
	Branch    string
	Author    string
	Message   string
	Timestamp string
	TreeHash  string
	Nodes     []TreeNode
	Files     []PlannedFile
	Content   func(path string) ([]byte, error)
}

// CommitPrebuilt persists a commit from a prebuilt tree, chaining it onto
// the branch head without touching the working tree.
func (e *Engine) CommitPrebuilt(ctx context.Context, p Prebuilt) (*CommitResult, error) {
	if p.Branch == "" {
		p.Branch = DefaultBranch
	}

	info, err := e.db.BranchHead(p.Branch)
	if err != nil {
		return nil, fmt.Errorf("resolving head of %s: %w", p.Branch, err)
	}
	parentHash := ""
	if info != nil {
		parentHash = info.Hash
	}

	hash := CommitHash(parentHash, p.Author, p.Message, p.Timestamp)
	signature, err := e.signatureFor(hash)
	if err != nil {
		return nil, err
	}
	e.assignAssetUUIDs(p.Files)

	plan := &CommitPlan{
		Branch:     p.Branch,
		Author:     p.Author,
		Message:    p.Message,
		Timestamp:  p.Timestamp,
		ParentHash: parentHash,
		TreeHash:   p.TreeHash,
		Hash:       hash,
		Signature:  signature,
		Nodes:      p.Nodes,
		Files:      p.Files,
		Content:    p.Content,
	}
	result, err := e.db.ApplyCommit(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("persisting prebuilt commit: %w", err)
	}
	if err := e.db.SetConfigValue(configCurrentCommit, result.Hash); err != nil {
		return nil, fmt.Errorf("recording head: %w", err)
	}
	return result, nil
}
