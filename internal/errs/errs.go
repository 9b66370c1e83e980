// Package errs defines the sentinel error taxonomy shared by every shadb
// subpackage. Callers compare with errors.Is; wrapped context is added with
// fmt.Errorf("...: %w", ...) at the call site, never by cloning a sentinel.
package errs

import "errors"

var (
	// ErrRepoNotInitialized is returned when the working tree has no git
	// repository and the caller did not ask Open to create one.
	ErrRepoNotInitialized = errors.New("shadb: repository not initialized")

	// ErrNameConflict is returned by AddIndex when an index name is already
	// registered.
	ErrNameConflict = errors.New("shadb: index name already registered")

	// ErrIllegalIndexName is returned by AddIndex for names that start with
	// an underscore or are not otherwise identifier-safe.
	ErrIllegalIndexName = errors.New("shadb: illegal index name")

	// ErrInvalidDescriptor is returned by AddIndex for descriptors that
	// combine unique+fts, or an auto-generator with a function projection,
	// or a second auto-enabled unique index.
	ErrInvalidDescriptor = errors.New("shadb: invalid index descriptor")

	// ErrKeyNotFound is returned by an exact lookup on a unique index with
	// no matching row.
	ErrKeyNotFound = errors.New("shadb: key not found")

	// ErrIndexNotRegistered is returned when Index or Docs is asked for a
	// name that was never passed to AddIndex.
	ErrIndexNotRegistered = errors.New("shadb: index not registered")

	// ErrUnknownTypeTag is returned when a JSON payload carries a
	// discriminator with no registered decoder.
	ErrUnknownTypeTag = errors.New("shadb: unknown type tag")

	// ErrLoadMissing is returned when the file backing a path is absent
	// during load. Callers that pass query.AllowMissing() suppress it.
	ErrLoadMissing = errors.New("shadb: document file missing")

	// ErrStorage wraps SQL or filesystem I/O failures that aren't one of
	// the more specific kinds above.
	ErrStorage = errors.New("shadb: storage error")
)
