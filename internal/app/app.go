// Package app is the application layer between the CLI and the engine.
// It locates the repository, loads user configuration, wires every
// dependency, and manages the database lifecycle on Close.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hackia/lys-sub000/internal/config"
	"github.com/hackia/lys-sub000/internal/database"
	"github.com/hackia/lys-sub000/internal/engine"
	"github.com/hackia/lys-sub000/internal/gitimport"
	"github.com/hackia/lys-sub000/internal/identity"
	"github.com/hackia/lys-sub000/internal/shelf"
	"github.com/hackia/lys-sub000/internal/uvd"
	"github.com/hackia/lys-sub000/internal/workspace"
)

// identityDirName is the keypair directory inside the engine directory.
const identityDirName = "identity"

// App wires the engine from user configuration and the on-disk
// repository, and exposes the high-level operations the CLI calls.
type App struct {
	cfg     *config.Config
	root    string
	db      *database.Database
	ws      *workspace.Workspace
	ident   *identity.Identity
	eng     *engine.Engine
	clock   engine.Clock
	log     engine.Logger
	logFile *os.File
	op      *Operation
}

// New opens the repository containing dir (the working directory when
// empty) and wires every dependency. operation identifies the CLI
// command being run (e.g. "commit", "checkout"). The caller must call
// Close when done.
func New(dir, operation string) (*App, error) {
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	opID := engine.UUIDGenerator{}.New()
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	ws, err := workspace.New(root)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	clock := engine.RealClock{}
	db, err := database.Open(ws.EngineDir(), clock.Now())
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening repository database: %w", err)
	}

	ident, err := identity.Open(filepath.Join(ws.EngineDir(), identityDirName))
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	log := &slogAdapter{l: logger}
	return &App{
		cfg:     cfg,
		root:    root,
		db:      db,
		ws:      ws,
		ident:   ident,
		eng:     engine.New(db, ws, ident, clock, engine.UUIDGenerator{}, log),
		clock:   clock,
		log:     log,
		logFile: logFile,
		op:      NewOperation(operation),
	}, nil
}

// LoadConfig reads the user config file, falling back to defaults when
// it does not exist yet.
func LoadConfig() (*config.Config, error) {
	defaults, err := GetDefaults()
	if err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		cfg = config.NewConfig("", defaults["base_dir"])
	default:
		return nil, err
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = defaults["base_dir"]
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	return cfg, nil
}

// Init creates a new repository at dir: the engine directory with its
// databases, the seeded main branch, and a fresh signing identity.
func Init(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	ws, err := workspace.New(dir)
	if err != nil {
		return "", err
	}
	engineDir := ws.EngineDir()
	if _, err := os.Stat(engineDir); err == nil {
		return "", fmt.Errorf("repository already initialized at %s", engineDir)
	}

	db, err := database.Open(engineDir, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("creating repository database: %w", err)
	}
	if err := db.Close(); err != nil {
		return "", fmt.Errorf("closing new database: %w", err)
	}

	if _, err := identity.Generate(filepath.Join(engineDir, identityDirName)); err != nil {
		return "", fmt.Errorf("generating signing identity: %w", err)
	}
	return ws.Root(), nil
}

// record appends one operations-log row capturing where the repository
// points after a successful mutation. Logging failures are reported but
// never fail the operation itself.
func (a *App) record() {
	if a.op.recorded {
		return
	}

	branch, err := a.eng.CurrentBranch()
	if err != nil {
		branch = ""
	}
	head := ""
	if info, err := a.eng.Head(); err == nil && info != nil {
		head = info.Hash
	}
	state, err := json.Marshal(map[string]string{"branch": branch, "head": head})
	if err != nil {
		return
	}

	ts := a.clock.Now().UTC().Format(time.RFC3339)
	if err := a.db.RecordOperation(a.op.Type, string(state), ts); err != nil {
		a.log.Warn("failed to record operation", "type", a.op.Type, "error", err)
		return
	}
	a.op.recorded = true
}

// Root returns the absolute repository root.
func (a *App) Root() string { return a.root }

// Identity returns the loaded signing identity.
func (a *App) Identity() *identity.Identity { return a.ident }

// CurrentBranch returns the checked-out branch name.
func (a *App) CurrentBranch() (string, error) {
	return a.eng.CurrentBranch()
}

// ExportIdentity writes the passphrase-encrypted keypair to w.
func (a *App) ExportIdentity(w io.Writer, passphrase string) error {
	return a.ident.Export(w, passphrase)
}

// ImportIdentity replaces the repository keypair with one previously
// exported by ExportIdentity.
func (a *App) ImportIdentity(r io.Reader, passphrase string) error {
	ident, err := identity.Import(r, passphrase, filepath.Join(a.ws.EngineDir(), identityDirName))
	if err != nil {
		return err
	}
	a.ident = ident
	return nil
}

// Status reports working-tree paths that differ from the head commit.
func (a *App) Status(ctx context.Context) ([]engine.StatusEntry, error) {
	return a.eng.Status(ctx)
}

// Diff renders the line diff of every changed path against head.
func (a *App) Diff(ctx context.Context) ([]engine.FileDiff, error) {
	return a.eng.Diff(ctx)
}

// Commit snapshots the working tree. An empty author falls back to the
// configured one.
func (a *App) Commit(ctx context.Context, author, message string) (*engine.CommitSummary, error) {
	if author == "" {
		author = a.cfg.Author
	}
	summary, err := a.eng.Commit(ctx, author, message)
	if err != nil {
		return nil, err
	}
	a.record()
	return summary, nil
}

// Log returns one page of history.
func (a *App) Log(q engine.LogQuery) ([]engine.LogEntry, error) {
	return a.eng.Log(q)
}

// Checkout moves the working tree to another branch or commit.
func (a *App) Checkout(ctx context.Context, ref string) (*engine.CheckoutSummary, error) {
	summary, err := a.eng.Checkout(ctx, ref)
	if err != nil {
		return nil, err
	}
	a.record()
	return summary, nil
}

// Restore rewrites a single path from the head commit.
func (a *App) Restore(ctx context.Context, path string) error {
	if err := a.eng.Restore(ctx, path); err != nil {
		return err
	}
	a.record()
	return nil
}

// Branches lists every branch.
func (a *App) Branches() ([]engine.BranchInfo, error) {
	return a.eng.Branches()
}

// CreateBranch points a new branch at the current head.
func (a *App) CreateBranch(name string) error {
	if err := a.eng.CreateBranch(name); err != nil {
		return err
	}
	a.record()
	return nil
}

// Tags lists every tag with its referenced commit.
func (a *App) Tags() ([]engine.TagInfo, error) {
	return a.eng.Tags()
}

// CreateTag attaches a tag to the current head.
func (a *App) CreateTag(name, description string) error {
	if err := a.eng.CreateTag(name, description); err != nil {
		return err
	}
	a.record()
	return nil
}

// StartFeature creates and checks out feature/<name>.
func (a *App) StartFeature(name string) (string, error) {
	branch, err := a.eng.StartFeature(name)
	if err != nil {
		return "", err
	}
	a.record()
	return branch, nil
}

// FinishFeature fast-forwards main to feature/<name> and deletes it.
func (a *App) FinishFeature(name string) error {
	if err := a.eng.FinishFeature(name); err != nil {
		return err
	}
	a.record()
	return nil
}

// StartHotfix creates and checks out hotfix/<name> from main.
func (a *App) StartHotfix(name string) (string, error) {
	branch, err := a.eng.StartHotfix(name)
	if err != nil {
		return "", err
	}
	a.record()
	return branch, nil
}

// FinishHotfix fast-forwards main to hotfix/<name> and deletes it.
func (a *App) FinishHotfix(name string) error {
	if err := a.eng.FinishHotfix(name); err != nil {
		return err
	}
	a.record()
	return nil
}

// Audit verifies the signature of every commit.
func (a *App) Audit(ctx context.Context) (*engine.AuditReport, error) {
	return a.eng.Audit(ctx)
}

// Verify checks blob integrity for every referenced hash.
func (a *App) Verify(ctx context.Context, deep bool) (*engine.VerifyReport, error) {
	return a.eng.Verify(ctx, deep)
}

// Prune removes expired commits and unreferenced data, or only the
// unreferenced data when orphans is true.
func (a *App) Prune(ctx context.Context, orphans bool) (*engine.PruneReport, error) {
	var (
		report *engine.PruneReport
		err    error
	)
	if orphans {
		report, err = a.eng.PruneOrphans(ctx)
	} else {
		report, err = a.eng.Prune(ctx)
	}
	if err != nil {
		return nil, err
	}
	a.record()
	return report, nil
}

// History returns the most recent operations-log rows, newest first.
func (a *App) History(limit int) ([]engine.OperationRecord, error) {
	return a.db.Operations(limit)
}

// Import replays the history of a Git repository into this one.
func (a *App) Import(ctx context.Context, opts gitimport.Options) (*gitimport.Result, error) {
	res, err := gitimport.New(a.db, a.eng, a.log).Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.record()
	return res, nil
}

// CreateArchive builds the package archive described by the uvd.toml at
// the repository root.
func (a *App) CreateArchive() (string, error) {
	return uvd.Create(a.ws, a.ident, a.clock.Now())
}

// VerifyArchive verifies an archive and returns its metadata. A failed
// verification deletes the file.
func (a *App) VerifyArchive(path string) (*uvd.Metadata, error) {
	if _, err := uvd.Verify(path, a.ident, a.clock.Now()); err != nil {
		return nil, err
	}
	return uvd.ReadMetadata(path)
}

// ExtractArchive verifies an archive and unpacks it next to itself.
func (a *App) ExtractArchive(path string) (string, error) {
	return uvd.Extract(path, a.ident, a.clock.Now())
}

// openShelf builds the configured shelf backend by name, the first one
// when name is empty.
func (a *App) openShelf(ctx context.Context, name string) (shelf.Shelf, error) {
	sc, err := a.cfg.ShelfByName(name)
	if err != nil {
		return nil, err
	}
	return shelf.NewShelfFromConfig(ctx, sc)
}

// PublishArchive verifies an archive and uploads it to the named shelf.
func (a *App) PublishArchive(ctx context.Context, shelfName, archivePath string) (string, error) {
	s, err := a.openShelf(ctx, shelfName)
	if err != nil {
		return "", err
	}
	return shelf.Publish(ctx, s, uvd.PackageName(archivePath), archivePath, a.ident, a.clock.Now())
}

// FetchArchive downloads the latest archive of a package from the named
// shelf into destDir (the repository root when empty) and verifies it.
func (a *App) FetchArchive(ctx context.Context, shelfName, pkg, destDir string) (string, error) {
	if destDir == "" {
		destDir = a.root
	}
	s, err := a.openShelf(ctx, shelfName)
	if err != nil {
		return "", err
	}
	return shelf.Fetch(ctx, s, pkg, destDir, a.ident, a.clock.Now())
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
