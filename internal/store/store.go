// Package store implements the store/delete primitives (component F): write
// or remove a document's JSON file, stage it with git, and compute the
// also_fns hint that drives an immediate index catch-up.
package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/gitexec"
	"github.com/keredson/shadb/internal/index"
	"github.com/keredson/shadb/internal/pathenc"
)

// UniqueIndex is the subset of a registered unique index's identity that
// signature resolution needs: its name and projection.
type UniqueIndex struct {
	Name       string
	Projection index.Projection
}

// Store writes and stages documents (§4.F "store").
type Store struct {
	root string
	git  *gitexec.Client
	reg  *codec.Registry
}

// New returns a Store rooted at root.
func New(root string, git *gitexec.Client, reg *codec.Registry) *Store {
	return &Store{root: root, git: git, reg: reg}
}

// Written describes one stored document's outcome: the path it landed at
// and whether the file is new (Write runs `git add` only in that case).
type Written struct {
	Path string
	New  bool
}

// Write encodes doc, resolves its signature against uniques, computes its
// path, writes the pretty-printed JSON, and stages it with git. It does not
// commit — that is the commit scope's (G) job.
//
// Auto-assignment runs before signature resolution for any uniques whose Auto
// generator is set and whose field is absent from the encoded document, per
// §4.F step 2 ("Auto-assignment").
func (s *Store) Write(ctx context.Context, doc any, uniques []index.Descriptor) (Written, error) {
	encoded, typeTag, err := s.reg.Encode(doc)
	if err != nil {
		return Written{}, err
	}

	for _, u := range uniques {
		if u.Auto == nil || !u.Projection.IsField() {
			continue
		}
		if v, ok := encoded[u.Projection.Field]; ok && v != nil && v != "" {
			continue
		}
		encoded[u.Projection.Field] = u.Auto()
	}

	sig, uidxName, err := resolveSignature(encoded, uniques)
	if err != nil {
		return Written{}, err
	}

	relPath := pathenc.Encode(typeTag, sig, uidxName)
	absPath := filepath.Join(s.root, relPath)

	_, statErr := os.Stat(absPath)
	isNew := os.IsNotExist(statErr)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return Written{}, fmt.Errorf("store: mkdir: %w", err)
	}
	out, err := codec.Marshal(encoded)
	if err != nil {
		return Written{}, fmt.Errorf("store: marshal: %w", err)
	}
	if err := os.WriteFile(absPath, out, 0o644); err != nil {
		return Written{}, fmt.Errorf("store: write: %w", err)
	}

	if isNew {
		if err := s.git.Add(ctx, relPath); err != nil {
			return Written{}, fmt.Errorf("store: git add: %w", err)
		}
	}

	return Written{Path: relPath, New: isNew}, nil
}

// resolveSignature implements §3 "Signature": the first non-empty
// projection among uniques, in the order given, or a random 128-bit
// fallback id.
func resolveSignature(doc map[string]any, uniques []index.Descriptor) (sig, uidxName string, err error) {
	for _, u := range uniques {
		k, ok, err := index.FirstNonEmptyKey(u.Projection, doc)
		if err != nil {
			return "", "", fmt.Errorf("store: signature projection %q: %w", u.Name, err)
		}
		if ok {
			return k, u.Name, nil
		}
	}
	return randomID(), "", nil
}

// randomID renders a random UUIDv4 as 32 lowercase hex characters, with the
// version/variant dashes stripped, matching §3's "random 128-bit identifier
// rendered as 32 lowercase hex chars" exactly (uuid.String() would leave the
// dashes in).
func randomID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Remove runs `git rm -f` on paths, removing them from the index and
// working tree (§4.F "delete" step 1).
func (s *Store) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := s.git.RemoveForce(ctx, paths...); err != nil {
		return fmt.Errorf("store: git rm: %w", err)
	}
	return nil
}
