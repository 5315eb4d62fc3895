package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gocloud.dev/blob"

	"github.com/ligustah/chase/pkg/pool"
)

func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	bucketURL := fs.String("bucket", "", "Bucket URL holding the shard archives (required)")
	poolName := fs.String("pool", "", "Pool preset to use")
	id := fs.String("id", "", "Resource ID to resolve (required)")
	verbose := fs.Bool("verbose", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: chase resolve [options]

Resolve a resource ID and print the shard and intra-archive location of each
of its files.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, logger, code := loadConfig(*configPath, *bucketURL, *poolName, *verbose)
	if code != ExitSuccess {
		return code
	}
	defer logger.Sync()

	ctx := context.Background()
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

	locations, err := p.Resolve(ctx, pool.ResourceID(*id))
	if err != nil {
		if errors.Is(err, pool.ErrResourceNotFound) {
			fmt.Fprintf(os.Stderr, "Resource %s not found\n", *id)
			return ExitNotFound
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	for _, loc := range locations {
		fmt.Printf("%s\t%s\t%d\t%d\n", loc.Shard, loc.Entry.Name, loc.Entry.Offset, loc.Entry.Size)
	}
	return ExitSuccess
}
