// Package index implements the index table manager (component C) and the
// index maintenance engine (component D): the descriptor type that
// describes a named index, and the incremental catch-up loop that keeps a
// descriptor's SQLite table in sync with the git working tree.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/keredson/shadb/internal/errs"
)

// identifierRe matches identifier-safe index names: the same shape a Go
// identifier allows, which also happens to exclude every SQL-table-name
// special character this package needs to avoid quoting.
var identifierRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Projection is a deterministic function from a document to zero, one, or
// many keys. It is either a field projection (an attribute name, resolved
// structurally against the document's top-level JSON object) or a named
// function projection supplied by the caller.
//
// The original, dynamic-language implementation hashes a projection
// function's source text to version its SQL table. Go functions carry no
// such source at runtime, so a function projection instead requires the
// caller to supply its own Version string (e.g. a semantic version, or a
// hash the caller computes over whatever it considers the function's
// identity) — see SPEC_FULL.md §3.J.
type Projection struct {
	// Field is the document attribute name, for a field projection.
	Field string

	// Name labels a function projection for diagnostics. Ignored for
	// field projections (Field is self-describing).
	Name string

	// Version is embedded in the index's SQL table name so that changing
	// the projection invalidates the old table. For a field projection
	// this is the field name itself; for a function projection the
	// caller must supply one explicitly.
	Version string

	// Fn is the function itself, for a function projection. Exactly one
	// of Field and Fn must be set.
	Fn func(doc map[string]any) (any, error)
}

// FieldProjection returns a projection that looks up a top-level document
// attribute by name.
func FieldProjection(field string) Projection {
	return Projection{Field: field, Version: field}
}

// FuncProjection returns a projection backed by an arbitrary function. The
// caller-supplied version controls table invalidation: change it whenever
// fn's behavior changes.
func FuncProjection(name, version string, fn func(doc map[string]any) (any, error)) Projection {
	return Projection{Name: name, Version: version, Fn: fn}
}

// IsField reports whether this is a field projection.
func (p Projection) IsField() bool { return p.Fn == nil }

// Apply evaluates the projection against doc, returning nil for "no key",
// a scalar, or a []any for multi-key projections (I4).
func (p Projection) Apply(doc map[string]any) (any, error) {
	if p.Fn != nil {
		return p.Fn(doc)
	}
	v, ok := doc[p.Field]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Descriptor is the full declaration of a named index (§3 "Index
// descriptor").
type Descriptor struct {
	Name       string
	Projection Projection
	Unique     bool
	IndexNull  bool
	FTS        bool

	// Auto, if set, synthesizes a value for Projection.Field when a
	// document lacks it, writing the result back into the document
	// before the path/signature is computed. Only valid on a field
	// projection. Store applies it only for Unique descriptors; on a
	// non-unique descriptor it has no effect.
	Auto func() string
}

// Validate checks the static rules from §4.H/§7: identifier-safe,
// non-underscore names, and unique/fts/auto combination rules.
func (d Descriptor) Validate() error {
	if d.Name == "" || strings.HasPrefix(d.Name, "_") || !identifierRe.MatchString(d.Name) {
		return fmt.Errorf("%w: %q", errs.ErrIllegalIndexName, d.Name)
	}
	if d.Unique && d.FTS {
		return fmt.Errorf("%w: %q: unique and fts are mutually exclusive", errs.ErrInvalidDescriptor, d.Name)
	}
	if d.Auto != nil && !d.Projection.IsField() {
		return fmt.Errorf("%w: %q: auto requires a field projection", errs.ErrInvalidDescriptor, d.Name)
	}
	if d.Projection.Fn == nil && d.Projection.Field == "" {
		return fmt.Errorf("%w: %q: projection must set Field or Fn", errs.ErrInvalidDescriptor, d.Name)
	}
	return nil
}

// TableName returns the versioned SQL table name for this descriptor:
// idx_<name>__V<hash>, where hash is derived from the projection's version
// so that changing the projection naturally abandons the old table.
func (d Descriptor) TableName() string {
	sum := sha256.Sum256([]byte(d.Projection.Version))
	return fmt.Sprintf("idx_%s__V%s", d.Name, hex.EncodeToString(sum[:])[:12])
}
