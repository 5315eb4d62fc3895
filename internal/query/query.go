package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	chasehttp "github.com/ligustah/chase/internal/http"
	"github.com/ligustah/chase/pkg/pool"
)

// A Filter decides whether a post from the search results is kept.
type Filter func(item map[string]any) bool

// Options configures a Query.
type Options struct {
	// Endpoint is the JSON search endpoint, e.g. ".../posts.json".
	Endpoint string

	// Tags are the search tags, joined with spaces.
	Tags []string

	// PageSize is the page size requested from the API. Default: 100.
	PageSize int

	// RatePerSecond limits API requests. Default: 1.
	RatePerSecond float64

	// Login and APIKey authenticate requests when both are set.
	Login  string
	APIKey string

	// HTTP configures the underlying client. Zero value uses defaults.
	HTTP chasehttp.Options

	// Logger logs pagination progress. Default: no logging.
	Logger *zap.Logger
}

// Query pages through a site's search API.
type Query struct {
	opts    Options
	client  *chasehttp.Client
	limiter *rate.Limiter
	filters []Filter
	logger  *zap.Logger
}

// New creates a Query. Filters apply in order; an item is dropped at the
// first filter that rejects it.
func New(opts Options, filters ...Filter) *Query {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.HTTP.MaxIdleConnsPerHost == 0 {
		opts.HTTP = chasehttp.DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{
		opts:    opts,
		client:  chasehttp.NewClient(opts.HTTP),
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		filters: filters,
		logger:  logger,
	}
}

// Each walks the search results page by page, calling fn for every post
// that passes the filters. Iteration stops when fn returns false, the
// results are exhausted, or ctx is done.
func (q *Query) Each(ctx context.Context, fn func(id pool.ResourceID, item map[string]any) bool) error {
	for page := 1; ; page++ {
		if err := q.limiter.Wait(ctx); err != nil {
			return err
		}

		items, err := q.fetchPage(ctx, page)
		if err != nil {
			return fmt.Errorf("query page %d: %w", page, err)
		}
		if len(items) == 0 {
			return nil
		}
		q.logger.Debug("fetched query page",
			zap.Int("page", page),
			zap.Int("items", len(items)),
		)

		for _, item := range items {
			if !q.keep(item) {
				continue
			}
			id, ok := itemID(item)
			if !ok {
				continue
			}
			if !fn(id, item) {
				return nil
			}
		}
	}
}

// Requests collects up to limit posts as pool requests, each carrying the
// post's raw metadata. limit <= 0 collects everything.
func (q *Query) Requests(ctx context.Context, limit int) ([]pool.Request, error) {
	var reqs []pool.Request
	err := q.Each(ctx, func(id pool.ResourceID, item map[string]any) bool {
		reqs = append(reqs, pool.Request{ID: id, Meta: item})
		return limit <= 0 || len(reqs) < limit
	})
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (q *Query) fetchPage(ctx context.Context, page int) ([]map[string]any, error) {
	params := url.Values{
		"tags":  {strings.Join(q.opts.Tags, " ")},
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(q.opts.PageSize)},
	}
	if q.opts.Login != "" && q.opts.APIKey != "" {
		params.Set("login", q.opts.Login)
		params.Set("api_key", q.opts.APIKey)
	}

	var items []map[string]any
	if err := q.client.GetJSON(ctx, q.opts.Endpoint, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Query) keep(item map[string]any) bool {
	for _, f := range q.filters {
		if !f(item) {
			return false
		}
	}
	return true
}

// itemID extracts the post's "id" field. Search APIs encode IDs as JSON
// numbers or strings; both are accepted.
func itemID(item map[string]any) (pool.ResourceID, bool) {
	switch v := item["id"].(type) {
	case json.Number:
		return pool.ResourceID(v.String()), true
	case float64:
		return pool.IntID(int64(v)), true
	case string:
		if v != "" {
			return pool.ResourceID(v), true
		}
	}
	return "", false
}
