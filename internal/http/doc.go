// Package http provides a retrying HTTP client for site-API queries.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - Retry with exponential backoff and jitter
//   - A status-code error taxonomy (not found, forbidden, server error)
//   - JSON response decoding
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	var posts []map[string]any
//	err := client.GetJSON(ctx, endpoint, params, &posts)
//
// Server errors (5xx) and transport failures are retried; client errors
// return immediately with a matchable sentinel.
package http
