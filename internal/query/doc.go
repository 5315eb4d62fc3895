// Package query turns site-API tag searches into resource-ID streams.
//
// A Query pages through a JSON search endpoint, applies client-side filters,
// and yields post IDs with their raw metadata. Requests are rate limited
// with a token bucket so long enumerations stay polite.
//
// # Usage
//
//	q := query.New(query.Options{
//	    Endpoint: "https://example.org/posts.json",
//	    Tags:     []string{"landscape", "rating:safe"},
//	})
//
//	reqs, err := q.Requests(ctx, 5000)
//	// feed reqs into pool.DownloadAll or pipe.BatchRetrieve
package query
