package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Entry describes a single file inside a tar shard: its path within the
// archive and the offset and size of its data block, as recorded by the
// shard's index sidecar.
type Entry struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// ArchiveStore provides access to remote tar shards.
//
// List fails with ErrShardNotFound when the shard itself is absent, which is
// distinct from a successful listing that lacks a particular resource. Other
// errors indicate transport problems and propagate.
type ArchiveStore interface {
	// List returns the entries of the shard at the given path.
	List(ctx context.Context, shard string) ([]Entry, error)

	// Download copies one entry's data out of a shard into the local file
	// at dst.
	Download(ctx context.Context, shard string, entry Entry, dst string) error

	// ListPrefix returns the shard paths stored under the given prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

// shardIndex is the on-storage format of a shard's index sidecar.
type shardIndex struct {
	Files []Entry `json:"files"`
}

const (
	indexSuffix     = ".index.json"
	indexZstdSuffix = ".index.json.zst"
)

// BlobStore is an ArchiveStore backed by a gocloud.dev blob bucket. Each
// shard is a tar object accompanied by an index sidecar ("<shard>.index.json"
// or its zstd-compressed variant) listing inner files with data offsets, so
// Download fetches exactly one file with a single ranged read.
type BlobStore struct {
	bucket *blob.Bucket
	logger *zap.Logger
}

// NewBlobStore creates a BlobStore over the given bucket. A nil logger
// disables logging.
func NewBlobStore(bucket *blob.Bucket, logger *zap.Logger) *BlobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{bucket: bucket, logger: logger}
}

// List implements ArchiveStore. The plain index sidecar is tried first, then
// the zstd-compressed one; if neither exists the shard is reported as not
// found.
func (s *BlobStore) List(ctx context.Context, shard string) ([]Entry, error) {
	data, err := s.readIndex(ctx, shard+indexSuffix, false)
	if isNotExist(err) {
		data, err = s.readIndex(ctx, shard+indexZstdSuffix, true)
	}
	if isNotExist(err) {
		return nil, fmt.Errorf("shard %q: %w", shard, ErrShardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read index for %q: %w", shard, err)
	}

	var idx shardIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse index for %q: %w", shard, err)
	}
	s.logger.Debug("listed shard",
		zap.String("shard", shard),
		zap.Int("entries", len(idx.Files)),
	)
	return idx.Files, nil
}

func (s *BlobStore) readIndex(ctx context.Context, key string, compressed bool) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if !compressed {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// Download implements ArchiveStore using a ranged read at the indexed offset.
// A partially written destination file is removed on failure.
func (s *BlobStore) Download(ctx context.Context, shard string, entry Entry, dst string) error {
	r, err := s.bucket.NewRangeReader(ctx, shard, entry.Offset, entry.Size, nil)
	if err != nil {
		if isNotExist(err) {
			return fmt.Errorf("shard %q: %w", shard, ErrShardNotFound)
		}
		return fmt.Errorf("open range %q[%d:%d]: %w", shard, entry.Offset, entry.Offset+entry.Size, err)
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("download %q from %q: %w", entry.Name, shard, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close %q: %w", dst, err)
	}
	return nil
}

// ListPrefix implements ArchiveStore. Only ".tar" objects are reported;
// index sidecars and other auxiliary objects are skipped.
func (s *BlobStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var shards []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
		}
		if strings.HasSuffix(obj.Key, ".tar") {
			shards = append(shards, obj.Key)
		}
	}
	return shards, nil
}

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return err != nil && gcerrors.Code(err) == gcerrors.NotFound
}

// CopyFile copies a regular file, creating parent directories as needed.
// Destination files are truncated, so repeated copies are idempotent.
func CopyFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %q: %w", dir, err)
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}
	return out.Close()
}
