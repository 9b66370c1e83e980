// Package scope implements the commit scope (component G): a transactional
// envelope around any number of store/delete calls, eagerly flushing index
// updates so in-scope readers see staged data, and committing or rolling
// back the working tree (and re-running the index catch-up) on exit.
package scope

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keredson/shadb/internal/gitexec"
	"github.com/keredson/shadb/internal/index"
	"github.com/keredson/shadb/internal/store"
)

// Scope batches writes against one working tree (§4.G). Nested scopes are
// not supported; a new Scope should only be created once any enclosing one
// has exited.
type Scope struct {
	root    string
	git     *gitexec.Client
	engine  *index.Engine
	st      *store.Store
	descs   func() []index.Descriptor
	uniques func() []index.Descriptor

	pending []string
}

// New returns a Scope. descs and uniques are called lazily at flush time so
// a scope always sees the facade's current index registration, not a
// snapshot taken at scope creation.
func New(root string, git *gitexec.Client, engine *index.Engine, st *store.Store, descs, uniques func() []index.Descriptor) *Scope {
	return &Scope{root: root, git: git, engine: engine, st: st, descs: descs, uniques: uniques}
}

// Store writes doc (§4.F "store"), records its path as pending, and flushes
// the index immediately so a reader inside this scope sees it.
func (s *Scope) Store(ctx context.Context, doc any) (string, error) {
	w, err := s.st.Write(ctx, doc, s.uniques())
	if err != nil {
		return "", err
	}
	s.pending = append(s.pending, w.Path)
	if err := s.engine.UpdateAll(ctx, s.descs(), []index.PendingChange{{Path: w.Path}}); err != nil {
		return "", fmt.Errorf("scope: store: index update: %w", err)
	}
	return w.Path, nil
}

// Delete removes paths (§4.F "delete" step 1) and flushes the index with
// those paths marked deleted. The top-level facade wraps a bare Delete call
// outside any scope in a one-shot Scope that commits immediately
// afterward; a Delete made inside an explicit WithScope block defers the
// git commit to scope exit, matching the distinction spec.md draws between
// commit=true and commit=false.
func (s *Scope) Delete(ctx context.Context, paths ...string) error {
	if err := s.st.Remove(ctx, paths...); err != nil {
		return err
	}
	s.pending = append(s.pending, paths...)
	hints := make([]index.PendingChange, len(paths))
	for i, p := range paths {
		hints[i] = index.PendingChange{Path: p, Deleted: true}
	}
	if err := s.engine.UpdateAll(ctx, s.descs(), hints); err != nil {
		return fmt.Errorf("scope: delete: index update: %w", err)
	}
	return nil
}

// Commit finalizes the scope's success path: if anything was staged, commit
// it in one git commit.
func (s *Scope) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.git.Commit(ctx, "shadb: commit scope", s.pending...); err != nil {
		return fmt.Errorf("scope: commit: %w", err)
	}
	return nil
}

// Abort finalizes the scope's failure path (§4.G "Failure path"): unstage
// everything pending, delete the files git had staged as newly added, and
// re-run the index catch-up with the pending paths as hints so rows
// flushed during the scope are removed.
func (s *Scope) Abort(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	toDelete, err := s.git.StagedAdded(ctx)
	if err != nil {
		return fmt.Errorf("scope: abort: status: %w", err)
	}
	if err := s.git.Reset(ctx, s.pending...); err != nil {
		return fmt.Errorf("scope: abort: reset: %w", err)
	}
	for _, p := range toDelete {
		if err := os.Remove(filepath.Join(s.root, p)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("scope: abort: unlink %s: %w", p, err)
		}
	}
	hints := make([]index.PendingChange, len(s.pending))
	for i, p := range s.pending {
		hints[i] = index.PendingChange{Path: p}
	}
	if err := s.engine.UpdateAll(ctx, s.descs(), hints); err != nil {
		return fmt.Errorf("scope: abort: index update: %w", err)
	}
	return nil
}

// Run drives fn to completion inside sc, committing on success and
// aborting (then re-panicking, or surfacing fn's error) on failure —
// including a panic inside fn, which Abort still runs for before the panic
// continues to unwind.
func Run(ctx context.Context, sc *Scope, fn func(*Scope) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = sc.Abort(ctx)
			panic(r)
		}
	}()
	if ferr := fn(sc); ferr != nil {
		if aerr := sc.Abort(ctx); aerr != nil {
			return fmt.Errorf("%w (while handling: %v)", aerr, ferr)
		}
		return ferr
	}
	return sc.Commit(ctx)
}
