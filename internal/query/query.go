// Package query implements the query surface (component E): per-index
// lookups, iteration, and counting over the SQL tables the index engine
// maintains, plus the document-materializing wrapper that loads each
// matched path through the value codec.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/keredson/shadb/internal/errs"
	"github.com/keredson/shadb/internal/index"
)

// Index is the query surface over one descriptor's SQL table.
type Index struct {
	db    *sql.DB
	desc  index.Descriptor
	table string
}

// NewIndex wraps db's table for desc.
func NewIndex(db *sql.DB, desc index.Descriptor) *Index {
	return &Index{db: db, desc: desc, table: desc.TableName()}
}

// Name returns the descriptor's name.
func (ix *Index) Name() string { return ix.desc.Name }

// whereAndArg picks the comparator a key selects: '=' for a plain key,
// 'LIKE' when it contains '%', or 'MATCH' for an FTS index (in which case
// the key is first passed through RewriteFTSQuery here).
func (ix *Index) whereAndArg(key string) (string, string) {
	if ix.desc.FTS {
		return "key MATCH ?", RewriteFTSQuery(key)
	}
	if strings.Contains(key, "%") {
		return "key LIKE ?", key
	}
	return "key = ?", key
}

// Get performs an exact/LIKE/MATCH lookup. A unique index returns its
// single match or errs.ErrKeyNotFound; a non-unique index returns every
// matching path, sorted.
func (ix *Index) Get(ctx context.Context, key string) (any, error) {
	cond, arg := ix.whereAndArg(key)
	if ix.desc.Unique {
		var fn string
		err := ix.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT fn FROM %s WHERE %s`, ix.table, cond), arg).Scan(&fn)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %q", errs.ErrKeyNotFound, key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get %q: %v", errs.ErrStorage, key, err)
		}
		return fn, nil
	}

	rows, err := ix.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT fn FROM %s WHERE %s ORDER BY fn`, ix.table, cond), arg)
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", errs.ErrStorage, key, err)
	}
	defer rows.Close()
	var fns []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, fmt.Errorf("%w: get %q: %v", errs.ErrStorage, key, err)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// GetDefault is Get with errs.ErrKeyNotFound swallowed into def.
func (ix *Index) GetDefault(ctx context.Context, key string, def any) (any, error) {
	v, err := ix.Get(ctx, key)
	if err != nil {
		if isKeyNotFound(err) {
			return def, nil
		}
		return nil, err
	}
	return v, nil
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, errs.ErrKeyNotFound)
}

// Contains reports whether key resolves to at least one path.
func (ix *Index) Contains(ctx context.Context, key string) (bool, error) {
	v, err := ix.Get(ctx, key)
	if err != nil {
		if isKeyNotFound(err) {
			return false, nil
		}
		return false, err
	}
	switch t := v.(type) {
	case string:
		return t != "", nil
	case []string:
		return len(t) > 0, nil
	}
	return false, nil
}

// Keys returns the distinct keys in the table, optionally filtered by a
// LIKE pattern.
func (ix *Index) Keys(ctx context.Context, like string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT key FROM %s`, ix.table)
	args := []any{}
	if like != "" {
		q += ` WHERE key LIKE ?`
		args = append(args, like)
	}
	q += ` ORDER BY key`
	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %v", errs.ErrStorage, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: keys: %v", errs.ErrStorage, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Item is one (key, paths) pairing returned by Items.
type Item struct {
	Key   string
	Paths []string
}

// Items streams (key, fn) pairs sorted by key for a unique index, or
// groups consecutive same keys into (key, [fn,...]) for a non-unique one.
func (ix *Index) Items(ctx context.Context, like string) ([]Item, error) {
	q := fmt.Sprintf(`SELECT key, fn FROM %s`, ix.table)
	args := []any{}
	if like != "" {
		q += ` WHERE key LIKE ?`
		args = append(args, like)
	}
	q += ` ORDER BY key, fn`
	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: items: %v", errs.ErrStorage, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var key, fn string
		if err := rows.Scan(&key, &fn); err != nil {
			return nil, fmt.Errorf("%w: items: %v", errs.ErrStorage, err)
		}
		if n := len(items); n > 0 && items[n-1].Key == key {
			items[n-1].Paths = append(items[n-1].Paths, fn)
			continue
		}
		items = append(items, Item{Key: key, Paths: []string{fn}})
	}
	return items, rows.Err()
}

// Values returns the second projection of Items: each group's paths, in
// the same order Items would return them.
func (ix *Index) Values(ctx context.Context, like string) ([][]string, error) {
	items, err := ix.Items(ctx, like)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(items))
	for i, it := range items {
		out[i] = it.Paths
	}
	return out, nil
}

// CountByKey returns the distinct-fn count per key.
func (ix *Index) CountByKey(ctx context.Context, like string) (map[string]int, error) {
	q := fmt.Sprintf(`SELECT key, COUNT(DISTINCT fn) FROM %s`, ix.table)
	args := []any{}
	if like != "" {
		q += ` WHERE key LIKE ?`
		args = append(args, like)
	}
	q += ` GROUP BY key`
	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: count_by_key: %v", errs.ErrStorage, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("%w: count_by_key: %v", errs.ErrStorage, err)
		}
		out[k] = n
	}
	return out, rows.Err()
}

// All returns every fn value in the table.
func (ix *Index) All(ctx context.Context) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx, fmt.Sprintf(`SELECT fn FROM %s ORDER BY fn`, ix.table))
	if err != nil {
		return nil, fmt.Errorf("%w: all: %v", errs.ErrStorage, err)
	}
	defer rows.Close()
	var fns []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, fmt.Errorf("%w: all: %v", errs.ErrStorage, err)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}
