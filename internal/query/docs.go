package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/errs"
)

// Docs wraps an Index, replacing every path it returns with the document
// loaded from that path (§4.E "document-materializing surface").
type Docs struct {
	ix   *Index
	root string
	reg  *codec.Registry
}

// NewDocs wraps ix, loading documents relative to root through reg.
func NewDocs(ix *Index, root string, reg *codec.Registry) *Docs {
	return &Docs{ix: ix, root: root, reg: reg}
}

// loadOptions configures Load and its Get/GetDefault/Items/Values/All
// wrappers.
type loadOptions struct {
	allowMissing bool
}

// LoadOption configures a Docs load call.
type LoadOption func(*loadOptions)

// AllowMissing suppresses ErrLoadMissing: a path whose backing file is
// absent resolves to a nil document instead of failing, per spec.md §7's
// "LoadMissing ... suppressible via caller flag" (grounded on the original
// implementation's load(fn, ignore_fnf=False)).
func AllowMissing() LoadOption {
	return func(o *loadOptions) { o.allowMissing = true }
}

func resolveLoadOptions(opts []LoadOption) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load decodes the document at the given repo-relative path. With
// AllowMissing, a missing file yields (nil, nil) instead of
// errs.ErrLoadMissing.
func (d *Docs) Load(path string, opts ...LoadOption) (any, error) {
	o := resolveLoadOptions(opts)
	raw, err := os.ReadFile(filepath.Join(d.root, path))
	if err != nil {
		if os.IsNotExist(err) {
			if o.allowMissing {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", errs.ErrLoadMissing, path)
		}
		return nil, fmt.Errorf("%w: load %s: %v", errs.ErrStorage, path, err)
	}
	return d.reg.Decode(raw)
}

func (d *Docs) loadAll(paths []string, opts []LoadOption) ([]any, error) {
	docs := make([]any, 0, len(paths))
	for _, p := range paths {
		doc, err := d.Load(p, opts...)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Get mirrors Index.Get but returns loaded documents instead of paths.
func (d *Docs) Get(ctx context.Context, key string, opts ...LoadOption) (any, error) {
	v, err := d.ix.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		return d.Load(t, opts...)
	case []string:
		return d.loadAll(t, opts)
	default:
		return v, nil
	}
}

// GetDefault mirrors Index.GetDefault, materializing the match.
func (d *Docs) GetDefault(ctx context.Context, key string, def any, opts ...LoadOption) (any, error) {
	v, err := d.ix.GetDefault(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case string:
		return d.Load(t, opts...)
	case []string:
		return d.loadAll(t, opts)
	default:
		return v, nil
	}
}

// DocItem is one (key, docs) pairing returned by Items.
type DocItem struct {
	Key  string
	Docs []any
}

// Items mirrors Index.Items, materializing every path into its document.
func (d *Docs) Items(ctx context.Context, like string, opts ...LoadOption) ([]DocItem, error) {
	items, err := d.ix.Items(ctx, like)
	if err != nil {
		return nil, err
	}
	out := make([]DocItem, len(items))
	for i, it := range items {
		docs, err := d.loadAll(it.Paths, opts)
		if err != nil {
			return nil, err
		}
		out[i] = DocItem{Key: it.Key, Docs: docs}
	}
	return out, nil
}

// Values mirrors Index.Values, materializing each group's paths.
func (d *Docs) Values(ctx context.Context, like string, opts ...LoadOption) ([][]any, error) {
	items, err := d.Items(ctx, like, opts...)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(items))
	for i, it := range items {
		out[i] = it.Docs
	}
	return out, nil
}

// All mirrors Index.All, materializing every path.
func (d *Docs) All(ctx context.Context, opts ...LoadOption) ([]any, error) {
	paths, err := d.ix.All(ctx)
	if err != nil {
		return nil, err
	}
	return d.loadAll(paths, opts)
}
