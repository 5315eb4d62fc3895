package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// DataLocation is a resolved pointer to one file of a resource: the shard
// that holds it plus the entry describing the file inside the shard.
type DataLocation struct {
	ResourceID ResourceID
	Shard      string
	Entry      Entry
}

// A NameFunc decides the local file name for a downloaded entry.
type NameFunc func(id ResourceID, entry Entry) string

// BasenameNaming keeps the intra-archive base name. This is the default.
func BasenameNaming(id ResourceID, entry Entry) string {
	return path.Base(entry.Name)
}

// RenameByID names each file after the resource ID plus the original
// extension, giving uniform names across shards with mixed layouts.
func RenameByID(id ResourceID, entry Entry) string {
	return string(id) + path.Ext(entry.Name)
}

// A Source materializes resources into scratch directories. Pool is the
// canonical implementation; MultiPool and CompositeSource compose sources.
type Source interface {
	// WithResource downloads all files of the resource into a fresh
	// temporary directory, calls fn with the directory and the pass-through
	// metadata, and removes the directory on every exit path. It fails with
	// ErrResourceNotFound when the ID resolves to nothing.
	WithResource(ctx context.Context, id ResourceID, meta any, fn func(dir string, meta any) error) error
}

// Option configures a Pool.
type Option func(*Pool)

// WithRecognizer sets the path-to-ID recognizer used for shard indexes.
// Default: NumericRecognizer.
func WithRecognizer(r Recognizer) Option {
	return func(p *Pool) { p.recognize = r }
}

// WithCandidates appends dynamic candidate generators tried after the
// locator's deterministic candidates, in the given order.
func WithCandidates(fns ...CandidateFunc) Option {
	return func(p *Pool) { p.candidates = append(p.candidates, fns...) }
}

// WithNaming sets the local naming policy for materialized files.
// Default: BasenameNaming.
func WithNaming(name NameFunc) Option {
	return func(p *Pool) { p.name = name }
}

// WithMaxCachedShards bounds the number of shard indexes kept in memory.
// Default: DefaultMaxCachedShards.
func WithMaxCachedShards(n int) Option {
	return func(p *Pool) { p.maxCachedShards = n }
}

// WithLogger sets the pool's logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// Pool resolves and materializes resources from one sharded dataset.
// A Pool is safe for concurrent use by multiple goroutines; its shard index
// cache is shared across all calls.
type Pool struct {
	store      ArchiveStore
	locator    Locator
	recognize  Recognizer
	candidates []CandidateFunc
	name       NameFunc
	logger     *zap.Logger

	maxCachedShards int
	index           *IndexCache
}

// New creates a Pool over the given store and locator.
func New(store ArchiveStore, locator Locator, opts ...Option) (*Pool, error) {
	if store == nil {
		return nil, fmt.Errorf("pool: store is required")
	}
	if locator == nil {
		return nil, fmt.Errorf("pool: locator is required")
	}

	p := &Pool{
		store:   store,
		locator: locator,
		name:    BasenameNaming,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	index, err := NewIndexCache(p.store, p.recognize, p.maxCachedShards, p.logger)
	if err != nil {
		return nil, err
	}
	p.index = index
	return p, nil
}

// Resolve returns the locations of every file belonging to the resource,
// searching candidate shards in order and stopping at the first shard that
// contains the ID. Shards that do not exist are skipped; other listing
// errors propagate. Fails with ErrResourceNotFound when no candidate shard
// holds the ID.
func (p *Pool) Resolve(ctx context.Context, id ResourceID) ([]DataLocation, error) {
	shards, err := p.candidateShards(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, shard := range shards {
		idx, err := p.index.Get(ctx, shard)
		if err != nil {
			// A missing shard means "not in this shard", not a failure.
			if errors.Is(err, ErrShardNotFound) {
				continue
			}
			return nil, err
		}
		entries, ok := idx[id]
		if !ok {
			continue
		}
		locations := make([]DataLocation, 0, len(entries))
		for _, entry := range entries {
			locations = append(locations, DataLocation{
				ResourceID: id,
				Shard:      shard,
				Entry:      entry,
			})
		}
		return locations, nil
	}
	return nil, fmt.Errorf("resource %q: %w", id, ErrResourceNotFound)
}

func (p *Pool) candidateShards(ctx context.Context, id ResourceID) ([]string, error) {
	shards := p.locator.Locate(id)
	for _, fn := range p.candidates {
		extra, err := fn(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("candidate shards for %q: %w", id, err)
		}
		shards = append(shards, extra...)
	}
	return shards, nil
}

// WithResource implements Source. Files of one resource download
// sequentially; parallelism belongs to callers, applied across resources.
func (p *Pool) WithResource(ctx context.Context, id ResourceID, meta any, fn func(dir string, meta any) error) error {
	locations, err := p.Resolve(ctx, id)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "chase-")
	if err != nil {
		return fmt.Errorf("scratch dir for %q: %w", id, err)
	}
	defer os.RemoveAll(dir)

	for _, loc := range locations {
		dst := filepath.Join(dir, p.name(id, loc.Entry))
		if err := p.store.Download(ctx, loc.Shard, loc.Entry, dst); err != nil {
			return fmt.Errorf("materialize %q: %w", id, err)
		}
	}
	return fn(dir, meta)
}

// ForgetShard drops the cached index of one shard, forcing a rebuild on the
// next resolve that touches it.
func (p *Pool) ForgetShard(shard string) {
	p.index.Forget(shard)
}
