// Package shadb is an embedded document database whose durable state is a
// git working tree of JSON files, and whose query surface is a set of
// user-declared secondary indices materialized in a derived SQLite
// database. Documents are plain Go values or registered typed records;
// lookups run against named indices by exact key, LIKE pattern, or (for
// full-text indices) a rewritten FTS5 MATCH query.
//
// A minimal session looks like:
//
//	repo, err := shadb.Open(ctx, "./data", shadb.WithInit(true))
//	err = repo.AddIndex(ctx, shadb.IndexDescriptor{Name: "by_email", Unique: true,
//		Projection: shadb.FieldProjection("email")})
//	path, err := repo.Store(ctx, map[string]any{"email": "a@example.com"})
//	ix, err := repo.Index("by_email")
//	fn, err := ix.Get(ctx, "a@example.com")
package shadb

import (
	"github.com/keredson/shadb/internal/codec"
	"github.com/keredson/shadb/internal/config"
	"github.com/keredson/shadb/internal/gitexec"
	"github.com/keredson/shadb/internal/index"
	"github.com/keredson/shadb/internal/logging"
	"github.com/keredson/shadb/internal/query"
	"github.com/keredson/shadb/internal/repo"
	"github.com/keredson/shadb/internal/scope"
)

// Repo is the open handle on one database (component H).
type Repo = repo.Repo

// Open resolves dir's configuration, initializes the git repository when
// requested and absent, opens the derived SQLite cache, and returns a
// ready Repo.
var Open = repo.Open

// Option configures Open.
type Option = repo.Option

// WithInit, WithConfig, WithLogFactory, and WithType are Open's functional
// options.
var (
	WithInit       = repo.WithInit
	WithConfig     = repo.WithConfig
	WithLogFactory = repo.WithLogFactory
	WithType       = repo.WithType
)

// Scope is the commit-scope handle passed to a WithScope callback
// (component G).
type Scope = scope.Scope

// Config is the resolved, layered configuration for a Repo (component J).
type Config = config.Config

// Decoder reconstructs a typed value from its JSON payload, with the
// discriminator already stripped (component B).
type Decoder = codec.Decoder

// Index is the query surface over one registered index (component E).
type Index = query.Index

// Docs is the document-materializing query surface (component E).
type Docs = query.Docs

// LoadOption configures a Docs load call.
type LoadOption = query.LoadOption

// AllowMissing suppresses ErrLoadMissing on a Docs load, yielding a nil
// document instead of an error for a path whose file is absent.
var AllowMissing = query.AllowMissing

// Item is one (key, paths) pairing from Index.Items.
type Item = query.Item

// DocItem is one (key, docs) pairing from Docs.Items.
type DocItem = query.DocItem

// RewriteFTSQuery rewrites a user-supplied search string into an FTS5
// MATCH expression (§4.E).
var RewriteFTSQuery = query.RewriteFTSQuery

// IndexDescriptor is the full declaration of a named index (component C/D),
// passed to Repo.AddIndex.
type IndexDescriptor = index.Descriptor

// Projection is a deterministic function from a document to zero, one, or
// many keys.
type Projection = index.Projection

// FieldProjection and FuncProjection build the two kinds of Projection.
var (
	FieldProjection = index.FieldProjection
	FuncProjection  = index.FuncProjection
)

// LogEntry is one entry of Repo.Log's commit history.
type LogEntry = gitexec.LogEntry
