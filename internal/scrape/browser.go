package scrape

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// BrowserConfig configures the headless Chrome backend.
type BrowserConfig struct {
	Headless bool
	Wait     time.Duration
	Timeout  time.Duration
}

// BrowserBackend renders pages in a local headless Chrome. One browser
// process is shared; every fetch opens its own tab.
type BrowserBackend struct {
	cfg BrowserConfig

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowserBackend prepares a Chrome allocator. The browser process is
// started on the first fetch.
func NewBrowserBackend(cfg BrowserConfig) *BrowserBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &BrowserBackend{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
}

func (b *BrowserBackend) Name() string { return "browser" }

// FetchHTML navigates a fresh tab to targetURL and returns the rendered
// document. Cancelling ctx aborts the tab.
func (b *BrowserBackend) FetchHTML(ctx context.Context, targetURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	timeoutCtx, cancel := context.WithTimeout(tabCtx, b.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tasks := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
	}
	if b.cfg.Wait > 0 {
		tasks = append(tasks, chromedp.Sleep(b.cfg.Wait))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return "", eris.Wrapf(err, "browser: render %s", targetURL)
	}

	if isBlocked, bt := DetectBodyBlock([]byte(html)); isBlocked {
		return "", blocked(targetURL, bt)
	}
	return html, nil
}

// Close shuts down the browser process.
func (b *BrowserBackend) Close() {
	b.browserCancel()
	b.allocCancel()
}
