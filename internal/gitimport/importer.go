// Package gitimport replays the history of an existing Git repository
// into a repository store, commit by commit.
//
// Blobs are hashed and inserted in batches so duplicated content is
// stored once. Replayed commits chain linearly onto the target branch in
// history order and stay unsigned unless an identity is configured.
package gitimport

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/hackia/lys-sub000/internal/database"
	"github.com/hackia/lys-sub000/internal/engine"
	"github.com/hackia/lys-sub000/internal/hashing"
)

// blobBatchSize bounds how many blobs a single insert transaction
// carries, keeping memory flat on repositories with large trees.
const blobBatchSize = 500

// Options configures one import run.
type Options struct {
	// Source is a local repository path or a clone URL.
	Source string

	// Depth keeps only the most recent Depth commits. Zero imports the
	// full history.
	Depth int

	// Branch receives the replayed history. Empty means the default
	// branch.
	Branch string

	// Workers bounds the blob hashing pool. Zero uses one per CPU.
	Workers int
}

// Result summarizes what an import run persisted.
type Result struct {
	Commits  int
	NewBlobs int
	HeadHash string
}

// Importer replays Git history into a store through the commit engine.
type Importer struct {
	db  *database.Database
	eng *engine.Engine
	log engine.Logger
}

func New(db *database.Database, eng *engine.Engine, log engine.Logger) *Importer {
	if log == nil {
		log = engine.NewNopLogger()
	}
	return &Importer{db: db, eng: eng, log: log}
}

// Run imports opts.Source. The store runs with durability pragmas
// relaxed for the duration; they are restored before the working tree is
// materialized.
func (imp *Importer) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Source == "" {
		return nil, fmt.Errorf("import source is required")
	}
	branch := opts.Branch
	if branch == "" {
		branch = engine.DefaultBranch
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	repo, cleanup, err := openSource(ctx, opts.Source, opts.Depth)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	commits, err := commitChain(repo, opts.Depth)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("%s has no commits to import", opts.Source)
	}
	imp.log.Info("import started", "source", opts.Source, "commits", len(commits))

	if err := imp.db.BeginBulk(); err != nil {
		return nil, err
	}
	bulkDone := false
	defer func() {
		if !bulkDone {
			_ = imp.db.EndBulk()
		}
	}()

	seen := make(map[string]string)  // git blob id -> content hash
	assets := make(map[string]int64) // path -> asset row of the previous commit
	result := &Result{}

	for i, c := range commits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		planned, batch, err := imp.stageCommit(c, seen, workers)
		if err != nil {
			return nil, fmt.Errorf("indexing commit %s: %w", c.Hash, err)
		}

		for start := 0; start < len(batch); start += blobBatchSize {
			end := start + blobBatchSize
			if end > len(batch) {
				end = len(batch)
			}
			n, err := imp.db.EnsureBlobs(batch[start:end])
			if err != nil {
				return nil, fmt.Errorf("storing blobs of %s: %w", c.Hash, err)
			}
			result.NewBlobs += n
		}

		for j := range planned {
			planned[j].AssetID = assets[planned[j].Path]
		}

		treeHash, nodes := engine.BuildTree(planned)
		res, err := imp.eng.CommitPrebuilt(ctx, engine.Prebuilt{
			Branch:    branch,
			Author:    authorOf(c),
			Message:   strings.TrimRight(c.Message, "\r\n"),
			Timestamp: c.Committer.When.UTC().Format(time.RFC3339),
			TreeHash:  treeHash,
			Nodes:     nodes,
			Files:     planned,
			Content:   commitContent(c),
		})
		if err != nil {
			return nil, fmt.Errorf("replaying commit %s: %w", c.Hash, err)
		}

		assets = res.AssetIDs
		result.Commits++
		result.HeadHash = res.Hash
		if (i+1)%100 == 0 {
			imp.log.Info("import progress", "done", i+1, "total", len(commits))
		}
	}

	if err := imp.db.EndBulk(); err != nil {
		return nil, err
	}
	bulkDone = true

	if _, err := imp.eng.ForceCheckout(ctx, branch); err != nil {
		return nil, fmt.Errorf("materializing imported head: %w", err)
	}

	imp.log.Info("import complete",
		"commits", result.Commits,
		"new_blobs", result.NewBlobs,
		"head", result.HeadHash,
	)
	return result, nil
}

// stageCommit lists the regular files of one commit, hashes the blobs
// this run has not met yet, and returns the planned manifest plus the
// blob rows to insert. seen gains the new blob ids on success.
func (imp *Importer) stageCommit(c *object.Commit, seen map[string]string, workers int) ([]engine.PlannedFile, []database.BlobData, error) {
	iter, err := c.Files()
	if err != nil {
		return nil, nil, fmt.Errorf("listing files: %w", err)
	}
	var files []*object.File
	err = iter.ForEach(func(f *object.File) error {
		// Drops symlinks and submodule pointers.
		if !f.Mode.IsFile() {
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking tree: %w", err)
	}

	var fresh []*object.File
	queued := make(map[string]bool, len(files))
	for _, f := range files {
		id := f.Hash.String()
		if _, ok := seen[id]; ok || queued[id] {
			continue
		}
		queued[id] = true
		fresh = append(fresh, f)
	}

	batch := make([]database.BlobData, len(fresh))
	if len(fresh) > 0 {
		// Object reads share one decoder and stay serialized behind mu;
		// hashing runs in parallel.
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			jobs = make(chan int)
			errs = make(chan error, len(fresh))
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range jobs {
					f := fresh[idx]
					mu.Lock()
					data, err := fileBytes(f)
					mu.Unlock()
					if err != nil {
						errs <- fmt.Errorf("reading %s: %w", f.Name, err)
						continue
					}
					batch[idx] = database.BlobData{
						Hash:    hashing.SumHex(data),
						Content: data,
						Path:    f.Name,
					}
				}
			}()
		}
		for idx := range fresh {
			jobs <- idx
		}
		close(jobs)
		wg.Wait()
		close(errs)
		if err := <-errs; err != nil {
			return nil, nil, err
		}
		for i, f := range fresh {
			seen[f.Hash.String()] = batch[i].Hash
		}
	}

	planned := make([]engine.PlannedFile, len(files))
	for i, f := range files {
		perm := int64(0o644)
		if osm, err := f.Mode.ToOSFileMode(); err == nil {
			perm = int64(osm.Perm())
		}
		planned[i] = engine.PlannedFile{
			Path: f.Name,
			Hash: seen[f.Hash.String()],
			Mode: engine.FileMode(perm),
			Size: f.Size,
		}
	}
	return planned, batch, nil
}

// openSource opens a local repository in place or clones a remote one
// into a temporary directory. cleanup is non-nil on success.
func openSource(ctx context.Context, source string, depth int) (*git.Repository, func(), error) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		repo, err := git.PlainOpen(source)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", source, err)
		}
		return repo, func() {}, nil
	}

	tmp, err := os.MkdirTemp("", "lys-import-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating clone directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmp) }

	repo, err := git.PlainCloneContext(ctx, tmp, false, &git.CloneOptions{URL: source, Depth: depth})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("cloning %s: %w", source, err)
	}
	return repo, cleanup, nil
}

// commitChain lists history from HEAD oldest-first. depth > 0 keeps only
// the most recent depth commits.
func commitChain(repo *git.Repository, depth int) ([]*object.Commit, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting commits: %w", err)
	}

	if depth > 0 && len(commits) > depth {
		commits = commits[:depth]
	}
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// commitContent resolves blob bytes straight from the source commit for
// hashes the batched insert did not cover.
func commitContent(c *object.Commit) func(path string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		f, err := c.File(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s from source commit: %w", path, err)
		}
		return fileBytes(f)
	}
}

func fileBytes(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func authorOf(c *object.Commit) string {
	name := strings.TrimSpace(c.Author.Name)
	if name == "" {
		name = "unknown"
	}
	if email := strings.TrimSpace(c.Author.Email); email != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	return name
}
