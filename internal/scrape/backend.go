// Package scrape fetches raw page HTML for the crawl layer. A Backend does
// the network work; PageFetcher wraps one with throttling, politeness
// delays and a per-host circuit breaker, and never surfaces errors.
package scrape

import (
	"context"
)

// Backend fetches the HTML of a single URL.
type Backend interface {
	Name() string
	FetchHTML(ctx context.Context, url string) (string, error)
}
