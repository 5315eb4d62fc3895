package pipe

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ligustah/chase/pkg/pool"
)

// A Transform turns a materialized resource into its domain payload. It runs
// inside the materialization scope, so dir and its contents are gone once it
// returns; payloads must not reference files in dir.
//
// A transform defines what "success" means for a pool: failing with
// pool.ErrResourceNotFound or pool.ErrInvalidResourceData marks the item as
// an expected skip rather than an unexpected failure.
type Transform func(ctx context.Context, dir string, id ResourceID, meta any) (any, error)

// Option configures a Pipe.
type Option func(*Pipe)

// WithLogger sets the pipe's logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipe) { p.logger = logger }
}

// Pipe retrieves resources from a source and transforms each into a domain
// payload.
type Pipe struct {
	src       pool.Source
	transform Transform
	logger    *zap.Logger
}

// New creates a Pipe over the given source and transform.
func New(src pool.Source, transform Transform, opts ...Option) *Pipe {
	p := &Pipe{
		src:       src,
		transform: transform,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve materializes one resource and returns its transformed payload.
func (p *Pipe) Retrieve(ctx context.Context, id ResourceID, meta any) (any, error) {
	var payload any
	err := p.src.WithResource(ctx, id, meta, func(dir string, meta any) error {
		var err error
		payload, err = p.transform(ctx, dir, id, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// RetrieveOptions configures one BatchRetrieve call.
type RetrieveOptions struct {
	// Workers is the worker budget for this call. Each call owns its pool
	// and tears it down on finish. Default: 12.
	Workers int

	// MaxCount stops the session after this many envelopes have been
	// consumed. By default only successful items count; see CountErrors.
	// 0 means unlimited.
	MaxCount int

	// CountErrors makes error envelopes count toward MaxCount.
	CountErrors bool
}

// BatchRetrieve fans retrieval of the requested resources out across a
// worker pool, delivering completed envelopes through the returned session.
// It never blocks: production starts when the session is first pulled.
//
// The worker budget, queue bound, ordering, and failure semantics are
// described in the package documentation.
func (p *Pipe) BatchRetrieve(ctx context.Context, reqs []pool.Request, opts RetrieveOptions) *Session {
	if opts.Workers <= 0 {
		opts.Workers = 12
	}
	s := newSession(opts.Workers*3, opts.MaxCount, opts.CountErrors)
	go p.produce(ctx, s, reqs, opts.Workers)
	return s
}

type job struct {
	order int
	req   pool.Request
}

// produce is the coordinator: it waits for the start gate, fans out one task
// per request preserving submission order indexes, then drains the worker
// pool and closes the session.
func (p *Pipe) produce(ctx context.Context, s *Session, reqs []pool.Request, workers int) {
	defer func() {
		s.requestStop()
		close(s.finished)
		close(s.results)
	}()

	select {
	case <-s.started:
	case <-s.stop:
		return
	case <-ctx.Done():
		return
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				p.work(ctx, s, j)
			}
		}()
	}

feed:
	for order, req := range reqs {
		if s.stopped() || ctx.Err() != nil {
			break
		}
		select {
		case jobs <- job{order: order, req: req}:
		case <-s.stop:
			break feed
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}

// work retrieves one item and delivers its envelope. Retrieval failures are
// captured as data; delivery blocks until the consumer makes room or the
// session stops.
func (p *Pipe) work(ctx context.Context, s *Session, j job) {
	if s.stopped() {
		return
	}

	var env Envelope
	data, err := p.Retrieve(ctx, j.req.ID, j.req.Meta)
	switch {
	case err == nil:
		env = &Item{ID: j.req.ID, Order: j.order, Meta: j.req.Meta, Data: data}
	case errors.Is(err, pool.ErrResourceNotFound):
		p.logger.Warn("resource not found", zap.String("id", string(j.req.ID)))
		env = &Error{ID: j.req.ID, Order: j.order, Meta: j.req.Meta, Err: err}
	case errors.Is(err, pool.ErrInvalidResourceData):
		p.logger.Warn("invalid resource data",
			zap.String("id", string(j.req.ID)),
			zap.Error(err),
		)
		env = &Error{ID: j.req.ID, Order: j.order, Meta: j.req.Meta, Err: err}
	default:
		p.logger.Error("retrieval failed",
			zap.String("id", string(j.req.ID)),
			zap.Error(err),
		)
		env = &Error{ID: j.req.ID, Order: j.order, Meta: j.req.Meta, Err: err}
	}

	// The bounded channel is the backpressure mechanism: block here until
	// the consumer makes room. A stopped session unblocks the send and the
	// envelope is dropped.
	select {
	case s.results <- env:
	case <-s.stop:
	}
}
