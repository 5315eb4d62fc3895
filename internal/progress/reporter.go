package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Total is the number of items in the batch, 0 if unknown.
	Total int

	// Workers is the number of parallel workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Label describes the batch (for display), e.g. "Downloading".
	Label string
}

// Reporter outputs human-readable progress information. Its counters are
// safe for concurrent use.
type Reporter struct {
	opts Options

	completed  atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
	inProgress atomic.Int64
	files      atomic.Int64

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	lastDone   int64
	stopCh     chan struct{}
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	if opts.Label == "" {
		opts.Label = "Processing"
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[chase] %s %d resources | Workers: %d\n",
		r.opts.Label, r.opts.Total, r.opts.Workers)

	go r.updateLoop()
}

// Stop stops the progress reporter.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
}

// ItemStarted marks an item as in progress.
func (r *Reporter) ItemStarted() {
	r.inProgress.Add(1)
}

// ItemCompleted marks an item as completed with the given file count.
func (r *Reporter) ItemCompleted(files int) {
	r.files.Add(int64(files))
	r.completed.Add(1)
	r.inProgress.Add(-1)
}

// ItemFailed marks an item as failed.
func (r *Reporter) ItemFailed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// ItemSkipped marks an item as skipped (not found or capped).
func (r *Reporter) ItemSkipped() {
	r.skipped.Add(1)
	r.inProgress.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// done counts every item no longer pending, whatever its outcome.
func (r *Reporter) done() int64 {
	return r.completed.Load() + r.failed.Load() + r.skipped.Load()
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	done := r.done()

	r.mu.Lock()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	rate := float64(done-r.lastDone) / elapsed
	r.lastUpdate = now
	r.lastDone = done
	r.mu.Unlock()

	var percent float64
	eta := "calculating..."
	if r.opts.Total > 0 {
		percent = float64(done) / float64(r.opts.Total) * 100
		if rate > 0 {
			remaining := float64(int64(r.opts.Total) - done)
			eta = formatDuration(time.Duration(remaining / rate * float64(time.Second)))
		}
	}

	fmt.Fprintf(r.opts.Output, "\r[chase] Progress: %.1f%% | %d/%d | %.1f items/s | ETA: %s    ",
		percent, done, r.opts.Total, rate, eta)
	fmt.Fprintf(r.opts.Output, "\n[chase] Items: %d completed | %d in-progress | %d failed | %d skipped    \033[A",
		r.completed.Load(), r.inProgress.Load(), r.failed.Load(), r.skipped.Load())
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	r.mu.Lock()
	duration := time.Since(r.startTime)
	r.mu.Unlock()

	done := r.done()
	rate := float64(done) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[chase] Items: %d completed | %d failed | %d skipped | %d files    \n",
		r.completed.Load(), r.failed.Load(), r.skipped.Load(), r.files.Load())
	fmt.Fprintf(r.opts.Output, "[chase] Total time: %s | Average rate: %.1f items/s\n",
		formatDuration(duration), rate)
}

// Completed returns the number of completed items.
func (r *Reporter) Completed() int64 {
	return r.completed.Load()
}

// Failed returns the number of failed items.
func (r *Reporter) Failed() int64 {
	return r.failed.Load()
}

// Skipped returns the number of skipped items.
func (r *Reporter) Skipped() int64 {
	return r.skipped.Load()
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
