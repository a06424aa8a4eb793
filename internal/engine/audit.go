package engine

import (
	"context"
	"fmt"

	"github.com/hackia/lys-sub000/internal/hashing"
)

// retentionYears is how long commits are kept before Prune removes them.
const retentionYears = 2

// Audit re-derives every commit hash from its recorded fields and checks
// the signature over it. Corrupted entries are listed by hash.
func (e *Engine) Audit(ctx context.Context) (*AuditReport, error) {
	commits, err := e.db.AllCommits(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading commits: %w", err)
	}

	report := &AuditReport{Total: len(commits)}
	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		expected := CommitHash(c.ParentHash, c.Author, c.Message, c.Timestamp)
		if expected != c.Hash {
			report.Corrupted = append(report.Corrupted, c.Hash)
			continue
		}

		if !c.Signed() {
			report.Unsigned++
			continue
		}
		if e.signer != nil && e.signer.Verify([]byte(c.Hash), c.Signature) {
			report.Valid++
		} else {
			report.Corrupted = append(report.Corrupted, c.Hash)
		}
	}

	e.log.Info("audit finished",
		"total", report.Total,
		"valid", report.Valid,
		"unsigned", report.Unsigned,
		"corrupted", len(report.Corrupted),
	)
	return report, nil
}

// Verify checks that every blob the tree index references exists. In
// deep mode each blob is decompressed and re-hashed against its address.
func (e *Engine) Verify(ctx context.Context, deep bool) (*VerifyReport, error) {
	refs, err := e.db.TreeFileRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tree references: %w", err)
	}

	report := &VerifyReport{}
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsDirMode(ref.Mode) || seen[ref.Hash] {
			continue
		}
		seen[ref.Hash] = true
		report.Checked++

		if !deep {
			ok, err := e.db.BlobExists(ref.Hash)
			if err != nil {
				return nil, fmt.Errorf("checking blob %s: %w", ref.Hash, err)
			}
			if !ok {
				report.Missing++
			}
			continue
		}

		data, err := e.db.BlobBytes(ref.Hash)
		switch {
		case err == nil:
			if hashing.SumHex(data) != ref.Hash {
				report.Corrupted++
			}
		case isNotFound(err):
			report.Missing++
		default:
			return nil, fmt.Errorf("loading blob %s: %w", ref.Hash, err)
		}
	}

	e.log.Info("verify finished",
		"deep", deep,
		"checked", report.Checked,
		"missing", report.Missing,
		"corrupted", report.Corrupted,
	)
	return report, nil
}

// Prune removes commits older than the retention window, then deletes
// every tree node and blob no surviving commit can reach.
func (e *Engine) Prune(ctx context.Context) (*PruneReport, error) {
	cutoff := e.clock.Now().UTC().AddDate(-retentionYears, 0, 0).Format(timestampLayout)
	report, err := e.db.Prune(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("pruning history before %s: %w", cutoff, err)
	}
	e.log.Info("prune finished",
		"cutoff", cutoff,
		"commits", report.Commits,
		"tree_nodes", report.TreeNodes,
		"blobs", report.Blobs,
	)
	return report, nil
}

// PruneOrphans deletes blobs nothing in the tree index references,
// without touching commits.
func (e *Engine) PruneOrphans(ctx context.Context) (*PruneReport, error) {
	report, err := e.db.PruneOrphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("pruning orphan blobs: %w", err)
	}
	e.log.Info("orphan prune finished", "blobs", report.Blobs)
	return report, nil
}
