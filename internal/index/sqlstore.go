package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"   // statically links the sqlite3 library (no cgo)

	"github.com/keredson/shadb/internal/errs"
)

// coreSchema creates the bookkeeping table every index shares: the
// catch-up watermark (§3 "Indexed state").
const coreSchema = `
CREATE TABLE IF NOT EXISTS indexed_state (
    name      TEXT PRIMARY KEY,
    last_hash TEXT NOT NULL
);
`

// OpenDB opens (creating if absent) the derived SQLite cache at path and
// ensures the core schema exists. A single connection is enforced
// (SetMaxOpenConns(1)) so that the engine's own mutex, not SQLite file
// locking under the pure-Go driver, is what serializes writers (§5).
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrStorage, path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(coreSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: core schema: %v", errs.ErrStorage, err)
	}
	return db, nil
}

// EnsureTable creates the SQL (or FTS5) table backing desc if it doesn't
// already exist (component C). The table name is versioned by the
// projection (Descriptor.TableName), so a changed projection gets a fresh,
// empty table rather than reusing stale rows.
func EnsureTable(ctx context.Context, db *sql.DB, desc Descriptor) error {
	table := desc.TableName()
	var ddl string
	if desc.FTS {
		ddl = fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(fn, key, tokenize='unicode61');`,
			table,
		)
	} else if desc.Unique {
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    key TEXT PRIMARY KEY,
    fn  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS %s_fn ON %s(fn);`,
			table, table, table)
	} else {
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    key TEXT,
    fn  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS %s_key ON %s(key);
CREATE INDEX IF NOT EXISTS %s_fn ON %s(fn);`,
			table, table, table, table, table)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: ensure table %s: %v", errs.ErrStorage, table, err)
	}
	return nil
}

// getLastHash and setLastHash key indexed_state by the index's *versioned*
// table name, not its bare Name — matching the Python ground truth, which
// keys off self._tbl_name. A re-registered index whose projection changed
// gets a new table name (Descriptor.TableName) and therefore starts from
// an empty watermark instead of inheriting the old projection's, so its
// catch-up diff runs from the git empty-tree hash and replays every
// document rather than only what changed since the stale watermark.
func getLastHash(ctx context.Context, tx *sql.Tx, table string) (string, error) {
	var hash string
	err := tx.QueryRowContext(ctx, `SELECT last_hash FROM indexed_state WHERE name = ?`, table).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read indexed_state: %v", errs.ErrStorage, err)
	}
	return hash, nil
}

func setLastHash(ctx context.Context, tx *sql.Tx, table, hash string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO indexed_state (name, last_hash) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET last_hash = excluded.last_hash`, table, hash)
	if err != nil {
		return fmt.Errorf("%w: write indexed_state: %v", errs.ErrStorage, err)
	}
	return nil
}
