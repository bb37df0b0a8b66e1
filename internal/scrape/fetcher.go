package scrape

import (
	"context"
	"math/rand/v2"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/skiptrace/internal/resilience"
)

// FetcherConfig controls pacing around backend calls.
type FetcherConfig struct {
	// RequestsPerSecond caps backend calls across all goroutines. Zero
	// disables the limiter.
	RequestsPerSecond float64

	// MinDelay and MaxDelay bound the random pause after a successful fetch.
	MinDelay time.Duration
	MaxDelay time.Duration

	// FailureDelay is the pause after a failed fetch.
	FailureDelay time.Duration

	Breaker resilience.BreakerConfig
}

// FailureFunc observes fetch failures, e.g. to post an alert.
type FailureFunc func(ctx context.Context, url string, err error)

// PageFetcher is the per-job fetch gateway. Fetch never returns an error:
// any failure yields "" and downstream parsing sees a page without
// sections. Requests counts successful fetches only.
type PageFetcher struct {
	backend  Backend
	cfg      FetcherConfig
	limiter  *rate.Limiter
	breakers *resilience.Breakers
	onFail   FailureFunc

	requests atomic.Int64

	sleep  func(ctx context.Context, d time.Duration)
	jitter func(n int64) int64
}

// FetcherOption configures a PageFetcher.
type FetcherOption func(*PageFetcher)

// WithFailureHook registers fn to be called after every failed fetch.
func WithFailureHook(fn FailureFunc) FetcherOption {
	return func(p *PageFetcher) { p.onFail = fn }
}

// NewPageFetcher wraps backend. A fresh fetcher should be created per job
// so request counts and breaker state do not leak between jobs.
func NewPageFetcher(backend Backend, cfg FetcherConfig, opts ...FetcherOption) *PageFetcher {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.Breaker.Trips == nil {
		cfg.Breaker.Trips = resilience.TripsBreaker
	}

	p := &PageFetcher{
		backend:  backend,
		cfg:      cfg,
		breakers: resilience.NewBreakers(cfg.Breaker),
		sleep:    sleepCtx,
		jitter:   rand.Int64N,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch returns the page HTML, or "" on any failure.
func (p *PageFetcher) Fetch(ctx context.Context, targetURL string) string {
	if ctx.Err() != nil {
		return ""
	}

	breaker := p.breakers.For(hostOf(targetURL))
	if err := breaker.Allow(); err != nil {
		zap.L().Warn("scrape: host breaker open, skipping fetch",
			zap.String("url", targetURL),
			zap.String("host", breaker.Name()),
		)
		return ""
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return ""
		}
	}

	html, err := p.backend.FetchHTML(ctx, targetURL)
	breaker.Record(err)
	if err != nil {
		if ctx.Err() == nil {
			zap.L().Warn("scrape: fetch failed",
				zap.String("backend", p.backend.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			if p.onFail != nil {
				p.onFail(ctx, targetURL, err)
			}
		}
		p.sleep(ctx, p.cfg.FailureDelay)
		return ""
	}

	p.requests.Add(1)
	p.sleep(ctx, p.politeDelay())
	return html
}

// Requests returns the number of successful fetches so far.
func (p *PageFetcher) Requests() int64 {
	return p.requests.Load()
}

// Breakers exposes per-host breaker state.
func (p *PageFetcher) Breakers() map[string]resilience.State {
	return p.breakers.States()
}

func (p *PageFetcher) politeDelay() time.Duration {
	span := int64(p.cfg.MaxDelay - p.cfg.MinDelay)
	if span <= 0 {
		return p.cfg.MinDelay
	}
	return p.cfg.MinDelay + time.Duration(p.jitter(span+1))
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
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
