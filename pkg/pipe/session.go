package pipe

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/ligustah/chase/pkg/pool"
)

// An Envelope is a completed unit of pipeline work: either an *Item or an
// *Error.
type Envelope interface {
	envelope()
}

// Item carries a successfully retrieved resource.
type Item struct {
	ID ResourceID
	// Order is the zero-based submission index, assigned at fan-out time.
	Order int
	// Meta is the pass-through metadata supplied with the request.
	Meta any
	// Data is the payload produced by the pipe's transform.
	Data any
}

// Error carries a captured per-item failure.
type Error struct {
	ID    ResourceID
	Order int
	Meta  any
	Err   error
}

// ResourceID aliases the pool's ID type for convenience.
type ResourceID = pool.ResourceID

func (*Item) envelope()  {}
func (*Error) envelope() {}

// Session is the consumer-facing handle over an in-flight batch retrieval.
//
// A session moves through four states: not started, running, stop-requested,
// finished. The first pull starts production; Shutdown, the max-count
// cutoff, or input exhaustion request a stop; once all in-flight work has
// drained the session finishes and no further envelopes are ever enqueued.
// Envelopes already buffered remain consumable after finish.
type Session struct {
	results chan Envelope

	started  chan struct{}
	stop     chan struct{}
	finished chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	maxCount    int
	countErrors bool

	mu      sync.Mutex
	counted int
}

func newSession(queueSize, maxCount int, countErrors bool) *Session {
	return &Session{
		results:     make(chan Envelope, queueSize),
		started:     make(chan struct{}),
		stop:        make(chan struct{}),
		finished:    make(chan struct{}),
		maxCount:    maxCount,
		countErrors: countErrors,
	}
}

// Next returns the next completed envelope. The first call starts
// production. It returns io.EOF once the session has finished and all
// buffered envelopes are consumed, or the context error if ctx is done
// first.
//
// Next does not apply the session's max-count cutoff; use All or Items for
// that.
func (s *Session) Next(ctx context.Context) (Envelope, error) {
	s.start()
	select {
	case env, ok := <-s.results:
		if !ok {
			return nil, io.EOF
		}
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// All yields every envelope, successes and failures alike, until the session
// drains, ctx is done, or the max-count cutoff is reached.
func (s *Session) All(ctx context.Context) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		for {
			env, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(env) {
				s.requestStop()
				return
			}
			if s.bump(env) {
				return
			}
		}
	}
}

// Items yields successful items only, dropping error envelopes, until the
// session drains, ctx is done, or the max-count cutoff is reached. When the
// cutoff fires the session proactively requests a stop so in-flight workers
// wind down without consuming the remaining input.
func (s *Session) Items(ctx context.Context) iter.Seq[*Item] {
	return func(yield func(*Item) bool) {
		for env := range s.All(ctx) {
			item, ok := env.(*Item)
			if !ok {
				continue
			}
			if !yield(item) {
				s.requestStop()
				return
			}
		}
	}
}

// Shutdown requests a cooperative stop and waits for in-flight work to
// drain. In-flight items finish naturally; there is no preemption. Returns
// the context error if ctx is done before the session finishes.
func (s *Session) Shutdown(ctx context.Context) error {
	s.requestStop()
	select {
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finished reports whether all production has drained. Buffered envelopes
// may still be pending consumption.
func (s *Session) Finished() bool {
	select {
	case <-s.finished:
		return true
	default:
		return false
	}
}

// bump counts a consumed envelope toward the max-count cutoff. By default
// only successful items count; WithCountErrors makes error envelopes count
// too. Returns true when the cutoff has been reached.
func (s *Session) bump(env Envelope) bool {
	if s.maxCount <= 0 {
		return false
	}
	if _, ok := env.(*Error); ok && !s.countErrors {
		return false
	}
	s.mu.Lock()
	s.counted++
	reached := s.counted >= s.maxCount
	s.mu.Unlock()
	if reached {
		s.requestStop()
	}
	return reached
}

func (s *Session) start() {
	s.startOnce.Do(func() { close(s.started) })
}

func (s *Session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
