// Package crawl drives the people-search site: paginated address and name
// searches, profile extraction and the bounded relatives crawl.
package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/internal/people"
)

// Fetcher returns page HTML, or "" when the page is unavailable.
// *scrape.PageFetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
	Requests() int64
}

// Config bounds the crawl.
type Config struct {
	BaseURL             string
	MaxPages            int
	MaxRelatives        int
	RelativeConcurrency int
	RelativeDelay       time.Duration
}

// Crawler runs searches for one job. It holds no per-row state.
type Crawler struct {
	fetcher Fetcher
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration)
}

// New creates a Crawler over fetcher.
func New(fetcher Fetcher, cfg Config) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 25
	}
	if cfg.MaxRelatives < 0 {
		cfg.MaxRelatives = 0
	}
	if cfg.RelativeConcurrency <= 0 {
		cfg.RelativeConcurrency = 10
	}
	return &Crawler{fetcher: fetcher, cfg: cfg, sleep: sleepCtx}
}

// Requests returns the fetcher's successful request count.
func (c *Crawler) Requests() int64 { return c.fetcher.Requests() }

// ExtractDetailsByURL fetches a profile page and parses its sections. The
// URL may be relative to the site. Failures yield empty details.
func (c *Crawler) ExtractDetailsByURL(ctx context.Context, profileURL string) model.ProfileDetails {
	resolved := people.ResolveURL(c.cfg.BaseURL, profileURL)
	if resolved == "" {
		return model.ProfileDetails{}
	}
	return people.ParseProfile(c.fetcher.Fetch(ctx, resolved))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func logSearchAbort(kind string, page int, err error) {
	zap.L().Warn("crawl: search aborted",
		zap.String("search", kind),
		zap.Int("page", page),
		zap.Error(err),
	)
}
