package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/chase/internal/config"
	"github.com/ligustah/chase/internal/progress"
	"github.com/ligustah/chase/pkg/pool"
)

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	bucketURL := fs.String("bucket", "", "Bucket URL holding the shard archives (required)")
	poolName := fs.String("pool", "", "Pool preset to use")
	dest := fs.String("dest", "", "Destination directory (required)")
	ids := fs.String("ids", "", "Comma-separated resource IDs")
	idsFile := fs.String("ids-file", "", "File with one resource ID per line")
	workers := fs.Int("workers", 0, "Number of parallel workers")
	maxDownloads := fs.Int("max", 0, "Stop after this many successful downloads (soft cap)")
	showProgress := fs.Bool("progress", false, "Show progress output")
	verbose := fs.Bool("verbose", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: chase download [options]

Download resources by ID from sharded tar archives into a local directory.
Missing or broken resources are logged and skipped; the batch never aborts
because one resource is bad.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, logger, code := loadConfig(*configPath, *bucketURL, *poolName, *verbose)
	if code != ExitSuccess {
		return code
	}
	defer logger.Sync()
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *maxDownloads > 0 {
		cfg.MaxDownloads = *maxDownloads
	}

	if *dest == "" {
		fmt.Fprintln(os.Stderr, "Error: -dest is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	reqs, err := collectRequests(*ids, *idsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if len(reqs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no resource IDs given (use -ids or -ids-file)")
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[chase] Received interrupt, shutting down...")
		cancel()
	}()

	bucket, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	p, err := cfg.BuildPool(pool.NewBlobStore(bucket, logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	opts := pool.DownloadOptions{
		Workers:      cfg.Workers,
		MaxDownloads: cfg.MaxDownloads,
		SaveMetainfo: cfg.SaveMetainfo,
		Logger:       logger,
	}

	var reporter *progress.Reporter
	if *showProgress || cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			Total:   len(reqs),
			Workers: cfg.Workers,
			Label:   "Downloading",
		})
		reporter.Start()
		defer reporter.Stop()
		opts.Progress = reporter
	}

	if err := pool.DownloadAll(ctx, p, reqs, *dest, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	if reporter != nil {
		reporter.Stop()
		if reporter.Completed() == 0 {
			return ExitNotFound
		}
	}
	return ExitSuccess
}

// loadConfig layers the config file, environment and flag overrides, and
// builds the logger.
func loadConfig(path, bucketURL, poolName string, verbose bool) (config.Config, *zap.Logger, int) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cfg, nil, ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, nil, ExitInvalidArgs
	}
	if bucketURL != "" {
		cfg.Bucket = bucketURL
	}
	if poolName != "" {
		cfg.Pool = poolName
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, nil, ExitInvalidArgs
	}

	logCfg := zap.NewProductionConfig()
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, nil, ExitGeneralError
	}
	return cfg, logger, ExitSuccess
}

// collectRequests parses the -ids flag and/or the -ids-file contents.
func collectRequests(ids, idsFile string) ([]pool.Request, error) {
	var reqs []pool.Request
	for _, raw := range strings.Split(ids, ",") {
		if id := strings.TrimSpace(raw); id != "" {
			reqs = append(reqs, pool.Request{ID: pool.ResourceID(id)})
		}
	}
	if idsFile != "" {
		f, err := os.Open(idsFile)
		if err != nil {
			return nil, fmt.Errorf("open ids file: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if id := strings.TrimSpace(scanner.Text()); id != "" {
				reqs = append(reqs, pool.Request{ID: pool.ResourceID(id)})
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read ids file: %w", err)
		}
	}
	return reqs, nil
}
