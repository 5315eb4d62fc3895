package pool

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// A Recognizer maps an intra-archive path to the resource ID it encodes.
// Paths that do not encode an ID fail with ErrUnrecognizablePath and are
// silently skipped while a shard index is built.
type Recognizer func(shard, name string) (ResourceID, error)

// NumericRecognizer treats the file's base name, stripped of its extension,
// as a decimal resource ID. "images/123/0456.tar!2345678.webp" recognizes as
// 2345678; auxiliary files like "meta.json" are unrecognizable.
func NumericRecognizer(shard, name string) (ResourceID, error) {
	body := strings.TrimSuffix(path.Base(name), path.Ext(name))
	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil || n < 0 {
		return "", fmt.Errorf("%q: %w", name, ErrUnrecognizablePath)
	}
	return IntID(n), nil
}

// ShardIndex maps resource IDs to the shard entries holding their files, in
// listing order. An index is immutable once built.
type ShardIndex map[ResourceID][]Entry

// IndexCache builds and caches per-shard indexes. Indexes are built at most
// once per shard path for the cache's lifetime (unless evicted or explicitly
// forgotten); concurrent requests for the same uncached shard are collapsed
// into a single remote listing, while unrelated shards populate in parallel.
type IndexCache struct {
	store     ArchiveStore
	recognize Recognizer
	logger    *zap.Logger

	group singleflight.Group
	cache *lru.Cache[string, ShardIndex]
}

// DefaultMaxCachedShards bounds the index cache when no explicit capacity is
// given. Indexes are small relative to shard data, so the default is
// generous.
const DefaultMaxCachedShards = 4096

// NewIndexCache creates an IndexCache over the given store. capacity <= 0
// selects DefaultMaxCachedShards. A nil logger disables logging.
func NewIndexCache(store ArchiveStore, recognize Recognizer, capacity int, logger *zap.Logger) (*IndexCache, error) {
	if capacity <= 0 {
		capacity = DefaultMaxCachedShards
	}
	if recognize == nil {
		recognize = NumericRecognizer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, ShardIndex](capacity)
	if err != nil {
		return nil, fmt.Errorf("index cache: %w", err)
	}
	return &IndexCache{
		store:     store,
		recognize: recognize,
		logger:    logger,
		cache:     cache,
	}, nil
}

// Get returns the index for the given shard, building it on first access.
func (c *IndexCache) Get(ctx context.Context, shard string) (ShardIndex, error) {
	key := normalizeShard(shard)
	if idx, ok := c.cache.Get(key); ok {
		return idx, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check under the flight: a previous winner may have
		// populated the cache between our miss and this call.
		if idx, ok := c.cache.Get(key); ok {
			return idx, nil
		}
		idx, err := c.build(ctx, shard)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ShardIndex), nil
}

// Forget drops the cached index for a shard, forcing a rebuild on next use.
func (c *IndexCache) Forget(shard string) {
	c.cache.Remove(normalizeShard(shard))
}

func (c *IndexCache) build(ctx context.Context, shard string) (ShardIndex, error) {
	entries, err := c.store.List(ctx, shard)
	if err != nil {
		return nil, err
	}

	idx := make(ShardIndex)
	skipped := 0
	for _, entry := range entries {
		id, err := c.recognize(shard, entry.Name)
		if err != nil {
			skipped++
			continue
		}
		idx[id] = append(idx[id], entry)
	}
	c.logger.Debug("built shard index",
		zap.String("shard", shard),
		zap.Int("resources", len(idx)),
		zap.Int("skipped", skipped),
	)
	return idx, nil
}

// normalizeShard produces the canonical cache key for a shard path, so that
// "images/012.tar" and "./images//012.tar" share one cache slot.
func normalizeShard(shard string) string {
	return path.Clean("/" + shard)
}
