// Package pool resolves resource IDs into files stored inside remote sharded
// tar archives and materializes them into local scratch directories.
//
// A pool is built from three collaborators:
//   - an [ArchiveStore], which lists a shard's contents and downloads single
//     files out of it (storage-agnostic via gocloud.dev/blob)
//   - a [Locator], which maps a resource ID to candidate shard paths using
//     pure, deterministic sharding arithmetic
//   - a [Recognizer], which maps intra-archive paths back to resource IDs
//     when a shard's index is built
//
// # Resolution
//
// [Pool.Resolve] walks the candidate shards in locator order. Each shard's
// index is listed once and cached for the lifetime of the pool; concurrent
// lookups into an uncached shard trigger exactly one remote listing. A shard
// that does not exist is skipped; the first shard containing the ID wins.
//
// # Materialization
//
// [Pool.WithResource] downloads every resolved file into a fresh temporary
// directory, invokes the caller's function, and removes the directory on
// every exit path.
//
// # Batch downloads
//
// [DownloadAll] drives materialization across many IDs with a fixed worker
// budget, copying results into a destination directory. Individual failures
// are logged and skipped, never aborting the batch.
//
// # Storage Layout
//
//	{bucket}/{base_dir}/123/456/0789.tar            shard archive
//	{bucket}/{base_dir}/123/456/0789.tar.index.json shard index sidecar
//
// The index sidecar lists each inner file's name, data offset and size, so a
// single file is fetched with one ranged read instead of pulling the whole
// tar. Sidecars may be zstd-compressed (".index.json.zst").
package pool
