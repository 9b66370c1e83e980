// Package repo implements the database facade (component H): repository
// open/init, index and type registration, and the Store/Delete/WithScope
// entry points that tie every other package together.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/config"
	"github.com/keredson/shadb/internal/errs"
	"github.com/keredson/shadb/internal/gitexec"
	"github.com/keredson/shadb/internal/index"
	"github.com/keredson/shadb/internal/logging"
	"github.com/keredson/shadb/internal/query"
	"github.com/keredson/shadb/internal/scope"
	"github.com/keredson/shadb/internal/store"
)

// dbFileName is the derived SQLite cache's filename, always untracked (§6).
const dbFileName = "idx.db"

// Repo is the open handle on one working tree plus its derived index (§4.H).
type Repo struct {
	root string
	git  *gitexec.Client
	db   *sql.DB
	reg  *codec.Registry

	logFactory *logging.Factory
	logger     *slog.Logger

	engine *index.Engine
	st     *store.Store

	// mu serializes every write against the shared working tree and SQLite
	// connection (§5 "Shared resources"): a git-add-then-index-update
	// sequence in F/G holds it for its full duration.
	mu sync.Mutex

	descs    map[string]index.Descriptor
	order    []string
	autoUsed bool // true once a unique index with Auto has been registered
}

// options collects Open's functional options.
type options struct {
	init      bool
	cfg       *config.Config
	logFactory *logging.Factory
	registrations []registration
}

type registration struct {
	name   string
	sample any
	decode codec.Decoder
}

// Option configures Open.
type Option func(*options)

// WithInit forces repository creation (equivalent to config's AutoInit,
// but settable per call without a config file).
func WithInit(b bool) Option {
	return func(o *options) { o.init = b }
}

// WithConfig overrides the layered configuration Open would otherwise load
// from dir.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogFactory overrides the logging.Factory Open would otherwise build
// from the resolved configuration.
func WithLogFactory(f *logging.Factory) Option {
	return func(o *options) { o.logFactory = f }
}

// WithType pre-registers a typed record's discriminator and decoder before
// Open returns, equivalent to calling Repo.RegisterType immediately after.
func WithType(name string, sample any, decode codec.Decoder) Option {
	return func(o *options) {
		o.registrations = append(o.registrations, registration{name: name, sample: sample, decode: decode})
	}
}

// Open resolves dir's configuration, initializes the git repository if
// requested and absent, opens the derived SQLite cache, and returns a ready
// Repo (§4.H "On open").
func Open(ctx context.Context, dir string, opts ...Option) (*Repo, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load(dir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.init {
		cfg.AutoInit = true
	}

	logFactory := o.logFactory
	if logFactory == nil {
		lvl := levelFromString(cfg.LogLevel)
		if cfg.LogFile != "" {
			logFactory = logging.NewFactory(logging.WithLevel(lvl), logging.WithRotatingFile(cfg.LogFile, 50, 3, 28))
		} else {
			logFactory = logging.NewFactory(logging.WithLevel(lvl))
		}
	}
	logger := logFactory.Logger("repo")

	git := gitexec.New(dir, gitexec.WithBinary(cfg.GitBinary))
	if !git.IsRepo(ctx) {
		if !cfg.AutoInit {
			return nil, errs.ErrRepoNotInitialized
		}
		if err := initRepo(ctx, dir, git); err != nil {
			return nil, err
		}
	}

	db, err := index.OpenDB(filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}

	reg := codec.NewRegistry()
	for _, r := range o.registrations {
		if err := reg.Register(r.name, r.sample, r.decode); err != nil {
			db.Close()
			return nil, err
		}
	}

	engine := index.NewEngine(db, git, reg, dir, logFactory.Logger("index"))
	st := store.New(dir, git, reg)

	return &Repo{
		root:       dir,
		git:        git,
		db:         db,
		reg:        reg,
		logFactory: logFactory,
		logger:     logger,
		engine:     engine,
		st:         st,
		descs:      make(map[string]index.Descriptor),
	}, nil
}

// initRepo creates a fresh git repository with the .gitignore and initial
// commit §4.H describes.
func initRepo(ctx context.Context, dir string, git *gitexec.Client) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("repo: mkdir %s: %w", dir, err)
	}
	if err := git.Init(ctx); err != nil {
		return fmt.Errorf("repo: git init: %w", err)
	}
	gitignorePath := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(dbFileName+"\n"), 0o644); err != nil {
		return fmt.Errorf("repo: write .gitignore: %w", err)
	}
	if err := git.Add(ctx, ".gitignore"); err != nil {
		return fmt.Errorf("repo: add .gitignore: %w", err)
	}
	if err := git.Commit(ctx, "shadb: initialize repository"); err != nil {
		return fmt.Errorf("repo: initial commit: %w", err)
	}
	return nil
}

func levelFromString(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// Close releases the derived database connection and any rotating log
// sink.
func (r *Repo) Close() error {
	var errOut error
	if err := r.db.Close(); err != nil {
		errOut = err
	}
	if err := r.logFactory.Close(); err != nil && errOut == nil {
		errOut = err
	}
	return errOut
}

// RegisterType associates a Go type with an on-disk discriminator and
// decoder, for documents stored/loaded as that type rather than a plain
// map[string]any.
func (r *Repo) RegisterType(name string, sample any, decode codec.Decoder) error {
	return r.reg.Register(name, sample, decode)
}

// AddIndex registers a new named index (§4.H "add_index"): validates the
// descriptor, rejects a duplicate name or a second auto-enabled unique
// index, creates its SQL table, and runs its initial catch-up so it's
// immediately queryable over whatever documents already exist.
func (r *Repo) AddIndex(ctx context.Context, desc index.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := desc.Validate(); err != nil {
		return err
	}
	if _, exists := r.descs[desc.Name]; exists {
		return fmt.Errorf("%w: %q", errs.ErrNameConflict, desc.Name)
	}
	if desc.Auto != nil && desc.Unique {
		if r.autoUsed {
			return fmt.Errorf("%w: %q: only one auto-enabled unique index may be registered", errs.ErrInvalidDescriptor, desc.Name)
		}
	}

	r.descs[desc.Name] = desc
	r.order = append(r.order, desc.Name)
	if desc.Auto != nil && desc.Unique {
		r.autoUsed = true
	}

	if err := r.engine.Update(ctx, desc, nil); err != nil {
		delete(r.descs, desc.Name)
		r.order = r.order[:len(r.order)-1]
		return err
	}
	return nil
}

func (r *Repo) descriptorsLocked() []index.Descriptor {
	out := make([]index.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descs[name])
	}
	return out
}

func (r *Repo) uniquesLocked() []index.Descriptor {
	out := make([]index.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		if d := r.descs[name]; d.Unique {
			out = append(out, d)
		}
	}
	return out
}

// descriptors and uniques snapshot the current registration, taking the
// facade's lock themselves. WithScope hands Scope the *Locked variants
// instead, since it already holds the lock for the scope's whole duration.
func (r *Repo) descriptors() []index.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.descriptorsLocked()
}

func (r *Repo) uniques() []index.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uniquesLocked()
}

// WithScope runs fn inside a new commit scope (§4.G), serialized against
// every other write on this Repo. Nested scopes are not supported.
func (r *Repo) WithScope(ctx context.Context, fn func(*scope.Scope) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc := scope.New(r.root, r.git, r.engine, r.st, r.descriptorsLocked, r.uniquesLocked)
	return scope.Run(ctx, sc, fn)
}

// Store writes a single document (§4.F "store") inside its own one-shot
// commit scope, committing before it returns. It does not join an
// enclosing WithScope block; writes within such a block go through the
// *scope.Scope passed to its callback.
func (r *Repo) Store(ctx context.Context, doc any) (string, error) {
	var path string
	err := r.WithScope(ctx, func(sc *scope.Scope) error {
		p, err := sc.Store(ctx, doc)
		if err != nil {
			return err
		}
		path = p
		return nil
	})
	return path, err
}

// Delete removes the documents at paths and commits immediately
// (equivalent to spec.md's delete(fn…, commit=true)).
func (r *Repo) Delete(ctx context.Context, paths ...string) error {
	return r.WithScope(ctx, func(sc *scope.Scope) error {
		return sc.Delete(ctx, paths...)
	})
}

// Index returns the query surface for a registered index.
func (r *Repo) Index(name string) (*query.Index, error) {
	r.mu.Lock()
	desc, ok := r.descs[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrIndexNotRegistered, name)
	}
	return query.NewIndex(r.db, desc), nil
}

// Docs returns the document-materializing surface for a registered index.
func (r *Repo) Docs(name string) (*query.Docs, error) {
	ix, err := r.Index(name)
	if err != nil {
		return nil, err
	}
	return query.NewDocs(ix, r.root, r.reg), nil
}

// Log returns the commit history touching paths (or the whole repository
// if none are given), most recent first.
func (r *Repo) Log(ctx context.Context, paths ...string) ([]gitexec.LogEntry, error) {
	return r.git.Log(ctx, paths...)
}

// Root returns the working tree root this Repo operates on.
func (r *Repo) Root() string { return r.root }

// Logger returns the repo-scoped structured logger.
func (r *Repo) Logger() *slog.Logger { return r.logger }
