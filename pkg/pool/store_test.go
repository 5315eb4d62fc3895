package pool_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ligustah/chase/internal/testutils"
	"github.com/ligustah/chase/pkg/pool"
)

func TestBlobStoreList(t *testing.T) {
	bucket := testutils.OpenMemBucket(t)
	testutils.WriteShard(t, bucket, "images/0123.tar", []testutils.ShardFile{
		{Name: "123.webp", Data: []byte("img-123")},
		{Name: "456.webp", Data: []byte("img-456")},
	})

	store := pool.NewBlobStore(bucket, nil)
	entries, err := store.List(context.Background(), "images/0123.tar")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Name != "123.webp" || entries[1].Name != "456.webp" {
		t.Errorf("unexpected entry names: %q, %q", entries[0].Name, entries[1].Name)
	}
	if entries[0].Size != int64(len("img-123")) {
		t.Errorf("entry size = %d, want %d", entries[0].Size, len("img-123"))
	}
}

func TestBlobStoreListZstdIndex(t *testing.T) {
	bucket := testutils.OpenMemBucket(t)
	testutils.WriteShardZstdIndex(t, bucket, "images/0123.tar", []testutils.ShardFile{
		{Name: "123.webp", Data: []byte("img-123")},
	})

	store := pool.NewBlobStore(bucket, nil)
	entries, err := store.List(context.Background(), "images/0123.tar")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "123.webp" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestBlobStoreListMissingShard(t *testing.T) {
	bucket := testutils.OpenMemBucket(t)
	store := pool.NewBlobStore(bucket, nil)

	_, err := store.List(context.Background(), "images/0999.tar")
	if !errors.Is(err, pool.ErrShardNotFound) {
		t.Fatalf("err = %v, want ErrShardNotFound", err)
	}
}

func TestBlobStoreDownload(t *testing.T) {
	bucket := testutils.OpenMemBucket(t)
	testutils.WriteShard(t, bucket, "images/0123.tar", []testutils.ShardFile{
		{Name: "123.webp", Data: []byte("first")},
		{Name: "456.webp", Data: []byte("second payload")},
	})

	store := pool.NewBlobStore(bucket, nil)
	entries, err := store.List(context.Background(), "images/0123.tar")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	dir := t.TempDir()
	for i, want := range []string{"first", "second payload"} {
		dst := filepath.Join(dir, entries[i].Name)
		if err := store.Download(context.Background(), "images/0123.tar", entries[i], dst); err != nil {
			t.Fatalf("download %q: %v", entries[i].Name, err)
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("read %q: %v", dst, err)
		}
		if string(got) != want {
			t.Errorf("entry %d = %q, want %q", i, got, want)
		}
	}
}

func TestBlobStoreListPrefix(t *testing.T) {
	bucket := testutils.OpenMemBucket(t)
	testutils.WriteShard(t, bucket, "updates/batch-1.tar", nil)
	testutils.WriteShard(t, bucket, "updates/batch-2.tar", nil)
	testutils.WriteShard(t, bucket, "images/0123.tar", nil)

	store := pool.NewBlobStore(bucket, nil)
	shards, err := store.ListPrefix(context.Background(), "updates/")
	if err != nil {
		t.Fatalf("list prefix: %v", err)
	}
	// Index sidecars are filtered out.
	want := []string{"updates/batch-1.tar", "updates/batch-2.tar"}
	if len(shards) != len(want) {
		t.Fatalf("got %v, want %v", shards, want)
	}
	for i := range want {
		if shards[i] != want[i] {
			t.Errorf("shard %d = %q, want %q", i, shards[i], want[i])
		}
	}
}

func TestCopyFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "sub", "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := pool.CopyFile(src, dst); err != nil {
			t.Fatalf("copy %d: %v", i, err)
		}
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("dst = %q, want %q", got, "payload")
	}
}
