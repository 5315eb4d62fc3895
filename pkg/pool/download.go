package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Request pairs a resource ID with optional pass-through metadata. The
// metadata is never interpreted; it rides along to metainfo sidecars and
// pipeline envelopes.
type Request struct {
	ID   ResourceID
	Meta any
}

// Requests builds a metadata-free request list from bare IDs.
func Requests(ids ...ResourceID) []Request {
	reqs := make([]Request, len(ids))
	for i, id := range ids {
		reqs[i] = Request{ID: id}
	}
	return reqs
}

// A ProgressReporter observes batch download progress. Implementations must
// be safe for concurrent use.
type ProgressReporter interface {
	ItemStarted()
	ItemCompleted(files int)
	ItemFailed()
	ItemSkipped()
}

// DownloadOptions configures DownloadAll.
type DownloadOptions struct {
	// Workers is the number of parallel materialization workers.
	// Default: 12.
	Workers int

	// MaxDownloads caps the number of successfully downloaded resources.
	// The cap is soft: items already dispatched to workers when it is
	// reached still finish, so the final count may slightly exceed it.
	// 0 means no cap.
	MaxDownloads int

	// SaveMetainfo writes a JSON sidecar for every resource whose request
	// carries non-nil metadata.
	SaveMetainfo bool

	// MetaName names the metainfo sidecar for a resource.
	// Default: "<id>_metainfo.json".
	MetaName func(id ResourceID) string

	// Progress is an optional progress reporter.
	Progress ProgressReporter

	// Logger logs skipped and failed items. Default: no logging.
	Logger *zap.Logger
}

// DownloadAll materializes each requested resource through src and copies
// its files into destDir, preserving the relative layout of the scratch
// directory. Per-item failures are logged and skipped; a missing resource or
// a broken one never aborts the batch. The returned error covers setup
// problems (such as an uncreatable destination) and context cancellation
// only.
//
// Running DownloadAll twice with the same inputs produces an identical
// destination tree: copies overwrite byte-for-byte, and sidecars are
// rewritten with stable key order.
func DownloadAll(ctx context.Context, src Source, reqs []Request, destDir string, opts DownloadOptions) error {
	if opts.Workers <= 0 {
		opts.Workers = 12
	}
	if opts.MetaName == nil {
		opts.MetaName = func(id ResourceID) string {
			return fmt.Sprintf("%s_metainfo.json", id)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination %q: %w", destDir, err)
	}

	var downloaded atomic.Int64
	capReached := func() bool {
		return opts.MaxDownloads > 0 && downloaded.Load() >= int64(opts.MaxDownloads)
	}

	jobs := make(chan Request)
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				if ctx.Err() != nil || capReached() {
					if opts.Progress != nil {
						opts.Progress.ItemSkipped()
					}
					continue
				}
				if downloadOne(ctx, src, req, destDir, opts, logger) {
					downloaded.Add(1)
				}
			}
		}()
	}

feed:
	for _, req := range reqs {
		if capReached() {
			break
		}
		select {
		case jobs <- req:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return ctx.Err()
}

// downloadOne materializes a single resource and copies it out. Returns true
// on success.
func downloadOne(ctx context.Context, src Source, req Request, destDir string, opts DownloadOptions, logger *zap.Logger) bool {
	if opts.Progress != nil {
		opts.Progress.ItemStarted()
	}

	files := 0
	err := src.WithResource(ctx, req.ID, req.Meta, func(dir string, meta any) error {
		copied, err := copyTree(dir, destDir)
		if err != nil {
			return err
		}
		files = copied
		if opts.SaveMetainfo && meta != nil {
			if err := writeMetainfo(filepath.Join(destDir, opts.MetaName(req.ID)), meta); err != nil {
				return err
			}
		}
		return nil
	})

	switch {
	case err == nil && files == 0:
		logger.Warn("no files found for resource", zap.String("id", string(req.ID)))
		if opts.Progress != nil {
			opts.Progress.ItemSkipped()
		}
		return false
	case errors.Is(err, ErrResourceNotFound):
		logger.Warn("resource not found, skipped", zap.String("id", string(req.ID)))
		if opts.Progress != nil {
			opts.Progress.ItemSkipped()
		}
		return false
	case err != nil:
		logger.Error("download failed, skipped",
			zap.String("id", string(req.ID)),
			zap.Error(err),
		)
		if opts.Progress != nil {
			opts.Progress.ItemFailed()
		}
		return false
	}

	if opts.Progress != nil {
		opts.Progress.ItemCompleted(files)
	}
	return true
}

// copyTree copies every regular file under src into dst, preserving relative
// paths. Returns the number of files copied.
func copyTree(src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if err := CopyFile(p, filepath.Join(dst, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func writeMetainfo(path string, meta any) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metainfo: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
