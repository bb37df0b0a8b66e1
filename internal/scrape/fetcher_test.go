package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/skiptrace/internal/resilience"
)

// lockedBackend is a concurrency-safe stubBackend.
type lockedBackend struct {
	mu sync.Mutex
	stubBackend
}

func (l *lockedBackend) FetchHTML(ctx context.Context, url string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stubBackend.FetchHTML(ctx, url)
}

func newTestFetcher(b Backend, cfg FetcherConfig, opts ...FetcherOption) (*PageFetcher, *[]time.Duration) {
	p := NewPageFetcher(b, cfg, opts...)
	var slept []time.Duration
	var mu sync.Mutex
	p.sleep = func(_ context.Context, d time.Duration) {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
	}
	p.jitter = func(n int64) int64 { return n - 1 }
	return p, &slept
}

func TestPageFetcher_SuccessCountsAndDelays(t *testing.T) {
	b := &stubBackend{name: "stub", pages: map[string]string{"https://people.test/a": "<p>a</p>"}}
	p, slept := newTestFetcher(b, FetcherConfig{MinDelay: 4 * time.Second, MaxDelay: 7 * time.Second})

	assert.Equal(t, "<p>a</p>", p.Fetch(context.Background(), "https://people.test/a"))
	assert.EqualValues(t, 1, p.Requests())
	assert.Equal(t, []time.Duration{7 * time.Second}, *slept)
}

func TestPageFetcher_FailureYieldsEmpty(t *testing.T) {
	b := &stubBackend{name: "stub", errs: map[string]error{"https://people.test/x": errors.New("boom")}}

	var hooked []string
	p, slept := newTestFetcher(b, FetcherConfig{FailureDelay: 3 * time.Second},
		WithFailureHook(func(_ context.Context, url string, err error) {
			hooked = append(hooked, url)
		}))

	assert.Equal(t, "", p.Fetch(context.Background(), "https://people.test/x"))
	assert.EqualValues(t, 0, p.Requests())
	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
	assert.Equal(t, []string{"https://people.test/x"}, hooked)
}

func TestPageFetcher_FailureIsNotRetried(t *testing.T) {
	b := &stubBackend{name: "scrapingbee", errs: map[string]error{"https://people.test/x": errors.New("502 from proxy")}}
	p, _ := newTestFetcher(b, FetcherConfig{})

	assert.Equal(t, "", p.Fetch(context.Background(), "https://people.test/x"))
	assert.Equal(t, []string{"https://people.test/x"}, b.calls)
}

func TestPageFetcher_CancelledContext(t *testing.T) {
	b := &stubBackend{name: "stub", pages: map[string]string{"u": "x"}}
	p, _ := newTestFetcher(b, FetcherConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, "", p.Fetch(ctx, "u"))
	assert.Empty(t, b.calls)
}

func TestPageFetcher_BreakerOpensPerHost(t *testing.T) {
	b := &stubBackend{
		name: "stub",
		errs: map[string]error{
			"https://busy.test/1": resilience.NewTransientError(errors.New("503"), 503),
			"https://busy.test/2": resilience.NewTransientError(errors.New("503"), 503),
		},
		pages: map[string]string{
			"https://busy.test/3": "never",
			"https://calm.test/1": "<p>ok</p>",
		},
	}
	p, _ := newTestFetcher(b, FetcherConfig{Breaker: resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour}})

	p.Fetch(context.Background(), "https://busy.test/1")
	p.Fetch(context.Background(), "https://busy.test/2")
	assert.Equal(t, "", p.Fetch(context.Background(), "https://busy.test/3"))
	assert.Equal(t, []string{"https://busy.test/1", "https://busy.test/2"}, b.calls)

	assert.Equal(t, "<p>ok</p>", p.Fetch(context.Background(), "https://calm.test/1"))
	states := p.Breakers()
	assert.Equal(t, resilience.Open, states["busy.test"])
	assert.Equal(t, resilience.Closed, states["calm.test"])
}

func TestPageFetcher_PermanentErrorsDoNotTrip(t *testing.T) {
	b := &stubBackend{name: "stub", errs: map[string]error{"https://site.test/404": errors.New("status 404")}}
	p, _ := newTestFetcher(b, FetcherConfig{Breaker: resilience.BreakerConfig{Threshold: 1}})

	p.Fetch(context.Background(), "https://site.test/404")
	p.Fetch(context.Background(), "https://site.test/404")
	assert.Len(t, b.calls, 2)
}

func TestPageFetcher_ConcurrentRequestsCounter(t *testing.T) {
	b := &lockedBackend{stubBackend: stubBackend{name: "stub", pages: map[string]string{"u": "x"}}}
	p, _ := newTestFetcher(b, FetcherConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Fetch(context.Background(), "u")
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 20, p.Requests())
}

func TestPoliteDelay_Bounds(t *testing.T) {
	p := NewPageFetcher(&stubBackend{}, FetcherConfig{MinDelay: time.Second, MaxDelay: 500 * time.Millisecond})
	assert.Equal(t, time.Second, p.politeDelay())

	p = NewPageFetcher(&stubBackend{}, FetcherConfig{MinDelay: time.Second, MaxDelay: 2 * time.Second})
	for i := 0; i < 50; i++ {
		d := p.politeDelay()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}
