package pool

import "errors"

// Common errors.
var (
	// ErrResourceNotFound is returned when a resource ID is absent from every
	// candidate shard. This is an expected condition for sparse ID spaces and
	// is never fatal in batch operations.
	ErrResourceNotFound = errors.New("pool: resource not found")

	// ErrInvalidResourceData is returned when a resource was found but its
	// materialized contents violate the shape expected by the caller, for
	// example duplicate data files where exactly one is required.
	ErrInvalidResourceData = errors.New("pool: invalid resource data")

	// ErrUnrecognizablePath is returned by a Recognizer for intra-archive
	// paths that do not encode a resource ID. Such entries are skipped while
	// building a shard index, never surfaced to callers.
	ErrUnrecognizablePath = errors.New("pool: unrecognizable path")

	// ErrShardNotFound is returned by an ArchiveStore when the shard itself
	// does not exist, as opposed to a listing that succeeded but lacks the
	// requested ID. Resolution treats it as "not in this shard" and continues
	// to the next candidate.
	ErrShardNotFound = errors.New("pool: shard not found")
)
