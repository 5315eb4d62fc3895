// Package testutils provides shared fixtures for pool and pipe tests:
// in-memory buckets holding tar shards with index sidecars, and spy
// wrappers for counting store calls.
package testutils

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/ligustah/chase/pkg/pool"
)

// ShardFile is one file to place inside a test shard.
type ShardFile struct {
	Name string
	Data []byte
}

// OpenMemBucket opens a fresh in-memory bucket, closed when the test ends.
func OpenMemBucket(t *testing.T) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

// WriteShard stores a tar shard and its plain index sidecar in the bucket.
func WriteShard(t *testing.T, bucket *blob.Bucket, shard string, files []ShardFile) {
	t.Helper()
	writeShard(t, bucket, shard, files, false)
}

// WriteShardZstdIndex stores a tar shard whose index sidecar is
// zstd-compressed.
func WriteShardZstdIndex(t *testing.T, bucket *blob.Bucket, shard string, files []ShardFile) {
	t.Helper()
	writeShard(t, bucket, shard, files, true)
}

func writeShard(t *testing.T, bucket *blob.Bucket, shard string, files []ShardFile, compressIndex bool) {
	t.Helper()
	ctx := context.Background()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	entries := make([]pool.Entry, 0, len(files))
	for _, f := range files {
		hdr := &tar.Header{
			Name: f.Name,
			Mode: 0o644,
			Size: int64(len(f.Data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %q: %v", f.Name, err)
		}
		// The data block starts right after the header block.
		entries = append(entries, pool.Entry{
			Name:   f.Name,
			Offset: int64(buf.Len()),
			Size:   int64(len(f.Data)),
		})
		if _, err := tw.Write(f.Data); err != nil {
			t.Fatalf("write tar data %q: %v", f.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}

	if err := bucket.WriteAll(ctx, shard, buf.Bytes(), nil); err != nil {
		t.Fatalf("write shard %q: %v", shard, err)
	}

	index, err := json.Marshal(struct {
		Files []pool.Entry `json:"files"`
	}{Files: entries})
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}

	key := shard + ".index.json"
	if compressIndex {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		index = enc.EncodeAll(index, nil)
		enc.Close()
		key = shard + ".index.json.zst"
	}
	if err := bucket.WriteAll(ctx, key, index, nil); err != nil {
		t.Fatalf("write index %q: %v", key, err)
	}
}

// CountingStore wraps an ArchiveStore, counting calls per method. Used to
// verify caching behavior.
type CountingStore struct {
	Inner pool.ArchiveStore

	Lists       atomic.Int64
	Downloads   atomic.Int64
	PrefixLists atomic.Int64
}

func (s *CountingStore) List(ctx context.Context, shard string) ([]pool.Entry, error) {
	s.Lists.Add(1)
	return s.Inner.List(ctx, shard)
}

func (s *CountingStore) Download(ctx context.Context, shard string, entry pool.Entry, dst string) error {
	s.Downloads.Add(1)
	return s.Inner.Download(ctx, shard, entry, dst)
}

func (s *CountingStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.PrefixLists.Add(1)
	return s.Inner.ListPrefix(ctx, prefix)
}
