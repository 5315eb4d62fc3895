package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestReporterCounters(t *testing.T) {
	r := NewReporter(Options{Output: &bytes.Buffer{}, Total: 10})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.ItemStarted()
			switch i % 3 {
			case 0:
				r.ItemCompleted(2)
			case 1:
				r.ItemFailed()
			case 2:
				r.ItemSkipped()
			}
		}(i)
	}
	wg.Wait()

	if got := r.Completed(); got != 2 {
		t.Errorf("completed = %d, want 2", got)
	}
	if got := r.Failed(); got != 2 {
		t.Errorf("failed = %d, want 2", got)
	}
	if got := r.Skipped(); got != 2 {
		t.Errorf("skipped = %d, want 2", got)
	}
	if got := r.inProgress.Load(); got != 0 {
		t.Errorf("in-progress = %d, want 0", got)
	}
	if got := r.files.Load(); got != 4 {
		t.Errorf("files = %d, want 4", got)
	}
}

func TestReporterOutput(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	out := &syncWriter{mu: &mu, w: &buf}

	r := NewReporter(Options{Output: out, Total: 3, Workers: 2, Label: "Downloading"})
	r.Start()
	r.ItemStarted()
	r.ItemCompleted(1)
	r.Stop()

	// The final status prints from the update loop goroutine.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		s := buf.String()
		mu.Unlock()
		if strings.Contains(s, "Total time:") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("final status never printed; output so far: %q", s)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	s := buf.String()
	mu.Unlock()
	if !strings.Contains(s, "[chase] Downloading 3 resources | Workers: 2") {
		t.Errorf("missing header in output: %q", s)
	}
	if !strings.Contains(s, "1 completed") {
		t.Errorf("missing completion count in output: %q", s)
	}
}

func TestReporterStopTwice(t *testing.T) {
	r := NewReporter(Options{Output: &bytes.Buffer{}})
	r.Start()
	r.Stop()
	r.Stop()
}

type syncWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{3905 * time.Second, "1h 5m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
