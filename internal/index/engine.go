package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/errs"
	"github.com/keredson/shadb/internal/gitexec"
)

// PendingChange is a store/delete hint (an "also_fn" in §4.D) describing a
// path the caller knows changed but that may not yet show up in
// `git diff --name-status` because it's only staged, not committed.
type PendingChange struct {
	Path    string
	Deleted bool
}

// Engine is the index maintenance engine (component D): it keeps every
// registered index's SQL table in sync with the git working tree via the
// incremental catch-up algorithm in SPEC_FULL.md §4.D.
type Engine struct {
	db     *sql.DB
	git    *gitexec.Client
	reg    *codec.Registry
	root   string
	logger *slog.Logger
}

// NewEngine builds an Engine. root is the working tree root that relative
// document paths resolve against.
func NewEngine(db *sql.DB, git *gitexec.Client, reg *codec.Registry, root string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, git: git, reg: reg, root: root, logger: logger}
}

// UpdateAll runs the catch-up algorithm for every descriptor in descs,
// applying the same pending hints to each — a single store/delete call can
// affect any number of indices, since any of them might project the
// changed document's fields.
func (e *Engine) UpdateAll(ctx context.Context, descs []Descriptor, hints []PendingChange) error {
	for _, d := range descs {
		if err := e.Update(ctx, d, hints); err != nil {
			return fmt.Errorf("index %q: %w", d.Name, err)
		}
	}
	return nil
}

// Update runs one index's catch-up algorithm (§4.D): read the last indexed
// commit, diff it against HEAD, fold in the pending hints, and apply every
// resulting add/modify/delete/rename to the index's SQL table, all inside
// one transaction.
func (e *Engine) Update(ctx context.Context, desc Descriptor, hints []PendingChange) error {
	if err := EnsureTable(ctx, e.db, desc); err != nil {
		return err
	}
	table := desc.TableName()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", errs.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lastHash, err := getLastHash(ctx, tx, table)
	if err != nil {
		return err
	}
	if lastHash == "" {
		lastHash, err = e.git.EmptyTreeHash(ctx)
		if err != nil {
			return fmt.Errorf("index %q: empty tree hash: %w", desc.Name, err)
		}
	}

	currentHash, err := e.git.RevParseHEAD(ctx)
	if err != nil {
		return fmt.Errorf("index %q: rev-parse HEAD: %w", desc.Name, err)
	}

	changes, err := e.git.DiffNameStatus(ctx, lastHash, currentHash)
	if err != nil {
		return fmt.Errorf("index %q: diff: %w", desc.Name, err)
	}
	changes = append(changes, pendingAsChanges(e.root, hints)...)

	for _, c := range changes {
		if !strings.HasSuffix(c.Path, ".json") {
			continue
		}
		if err := e.applyChange(ctx, tx, desc, table, c); err != nil {
			return fmt.Errorf("index %q: apply %s %s: %w", desc.Name, c.Status, c.Path, err)
		}
	}

	if err := setLastHash(ctx, tx, table, currentHash); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", errs.ErrStorage, err)
	}
	committed = true
	return nil
}

// pendingAsChanges turns the also_fns hints into synthetic diff lines: 'M'
// if the file still exists on disk (store), 'D' otherwise (delete), per
// §4.D step 4.
func pendingAsChanges(root string, hints []PendingChange) []gitexec.Change {
	out := make([]gitexec.Change, 0, len(hints))
	for _, h := range hints {
		if h.Deleted {
			out = append(out, gitexec.Change{Status: "D", Path: h.Path})
			continue
		}
		if _, err := os.Stat(filepath.Join(root, h.Path)); err != nil {
			out = append(out, gitexec.Change{Status: "D", Path: h.Path})
		} else {
			out = append(out, gitexec.Change{Status: "M", Path: h.Path})
		}
	}
	return out
}

// applyChange applies one parsed diff line to table, following §4.D step 5.
//
// A pure rename (R100) only needs its fn column updated. Everything else —
// add, copy, modify, or a rename with a content change — deletes any rows
// at the old path and, unless the change is a pure delete, reloads the
// document and re-emits its rows. Per SPEC_FULL.md §9 (resolving the
// unique-index staleness Open Question) this delete-then-insert is
// unconditional, including for unique indices on 'M': the reference
// algorithm relies on REPLACE INTO without a prior delete there, which
// leaves a stale row behind if the projection starts yielding nothing for
// a file it used to index. Deleting first closes that gap at the cost of
// the upsert's single-statement efficiency.
func (e *Engine) applyChange(ctx context.Context, tx *sql.Tx, desc Descriptor, table string, c gitexec.Change) error {
	if c.IsPureRename() {
		return renameRows(ctx, tx, desc, table, c.OldPath, c.Path)
	}

	oldPath := c.Path
	if c.IsRename() { // non-R100 rename: content changed, reindex under the new path
		oldPath = c.OldPath
	}
	if err := deleteRows(ctx, tx, desc, table, oldPath); err != nil {
		return err
	}
	if c.Status == "D" {
		return nil
	}

	// A, C, M, or a non-R100 rename: (re)load the document and re-emit.
	doc, err := e.loadDoc(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Warn("file missing during catch-up; skipping, a later rescan will converge",
				"path", c.Path, "index", desc.Name)
			return nil
		}
		return err
	}

	value, err := desc.Projection.Apply(doc)
	if err != nil {
		return fmt.Errorf("projection: %w", err)
	}
	keys, err := ProjectedKeys(value, desc.IndexNull)
	if err != nil {
		return fmt.Errorf("normalize keys: %w", err)
	}
	return insertRows(ctx, tx, desc, table, c.Path, keys)
}

func (e *Engine) loadDoc(relPath string) (map[string]any, error) {
	raw, err := os.ReadFile(filepath.Join(e.root, relPath))
	if err != nil {
		return nil, err
	}
	v, err := e.reg.Decode(raw)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	// Typed record: re-marshal through the codec to recover its JSON
	// object shape for field-name projections to operate on.
	reencoded, _, err := e.reg.Encode(v)
	if err != nil {
		return nil, err
	}
	return reencoded, nil
}

func renameRows(ctx context.Context, tx *sql.Tx, desc Descriptor, table, oldPath, newPath string) error {
	if desc.FTS {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET fn = ? WHERE fn = ?`, table), newPath, oldPath)
		return err
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET fn = ? WHERE fn = ?`, table), newPath, oldPath)
	return err
}

func deleteRows(ctx context.Context, tx *sql.Tx, desc Descriptor, table, path string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE fn = ?`, table), path)
	return err
}

func insertRows(ctx context.Context, tx *sql.Tx, desc Descriptor, table, path string, keys []string) error {
	verb := "INSERT"
	if desc.Unique {
		verb = "REPLACE" // resolves cross-file key collisions (I2); same-file staleness already handled above
	}
	stmt := fmt.Sprintf(`%s INTO %s (key, fn) VALUES (?, ?)`, verb, table)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, stmt, k, path); err != nil {
			return fmt.Errorf("%w: insert row: %v", errs.ErrStorage, err)
		}
	}
	return nil
}
