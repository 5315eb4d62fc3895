// Package progress provides progress reporting for batch retrievals.
//
// This package outputs human-readable progress information, including
// completed, failed and skipped item counts, file totals and throughput.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    Total:  len(ids),
//	    Output: os.Stderr,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as items complete
//	reporter.ItemCompleted(fileCount)
//
// # Output Format
//
//	[chase] Downloading 5000 resources | Workers: 12
//	[chase] Progress: 45.2% | 2260/5000 | 3.1 items/s | ETA: 14m 43s
//	[chase] Items: 2260 completed | 12 in-progress | 3 failed | 41 skipped
package progress
