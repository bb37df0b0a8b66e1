package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/classify"
	"github.com/sells-group/skiptrace/internal/columns"
	"github.com/sells-group/skiptrace/internal/config"
	"github.com/sells-group/skiptrace/internal/crawl"
	"github.com/sells-group/skiptrace/internal/enrich"
	"github.com/sells-group/skiptrace/internal/job"
	"github.com/sells-group/skiptrace/internal/phone"
	"github.com/sells-group/skiptrace/internal/resilience"
	"github.com/sells-group/skiptrace/internal/scrape"
	"github.com/sells-group/skiptrace/internal/store"
	"github.com/sells-group/skiptrace/pkg/anthropic"
	"github.com/sells-group/skiptrace/pkg/bizfile"
	"github.com/sells-group/skiptrace/pkg/openai"
	"github.com/sells-group/skiptrace/pkg/scrapingbee"
	"github.com/sells-group/skiptrace/pkg/slack"
	"github.com/sells-group/skiptrace/pkg/zyte"
)

// enrichEnv holds the long-lived clients shared by every job.
type enrichEnv struct {
	cfg        *config.Config
	table      *columns.Table
	backend    scrape.Backend
	classifier classify.Classifier
	registry   bizfile.Client
	notifier   slack.Notifier
	closers    []func()
}

// initEnrich validates cfg for mode and builds the shared clients.
func initEnrich(c *config.Config, mode string) (*enrichEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	table, err := columns.LoadTable(c.Columns.MappingFile)
	if err != nil {
		return nil, err
	}

	env := &enrichEnv{
		cfg:      c,
		table:    table,
		registry: bizfile.NewClient(bizfile.WithBaseURL(c.BizFile.BaseURL)),
		notifier: slack.NewNotifier(c.Slack.WebhookURL),
	}

	env.backend, err = env.newBackend()
	if err != nil {
		return nil, err
	}

	env.classifier, err = newClassifier(c)
	if err != nil {
		env.Close()
		return nil, err
	}

	zap.L().Info("enrichment initialized",
		zap.String("backend", env.backend.Name()),
		zap.String("classifier", c.Classifier.Provider),
		zap.String("people_site", c.People.BaseURL),
	)
	return env, nil
}

// newBackend builds the configured backend. With fetch.fallback_http set,
// a failed paid or browser fetch is retried once over plain HTTP.
func (e *enrichEnv) newBackend() (scrape.Backend, error) {
	c := e.cfg
	httpBackend := scrape.NewHTTPBackend(time.Duration(c.Fetch.TimeoutSecs) * time.Second)

	var primary scrape.Backend
	switch c.Fetch.Backend {
	case "scrapingbee":
		client := scrapingbee.NewClient(c.ScrapingBee.Key, scrapingbee.WithBaseURL(c.ScrapingBee.BaseURL))
		primary = scrape.NewScrapingBeeBackend(client, c.ScrapingBee.RenderJS, c.ScrapingBee.WaitMs)
	case "zyte":
		client := zyte.NewClient(c.Zyte.Key, zyte.WithBaseURL(c.Zyte.BaseURL))
		primary = scrape.NewZyteBackend(client)
	case "browser":
		b := scrape.NewBrowserBackend(scrape.BrowserConfig{
			Headless: c.Browser.Headless,
			Wait:     time.Duration(c.Browser.WaitMs) * time.Millisecond,
			Timeout:  time.Duration(c.Browser.TimeoutSecs) * time.Second,
		})
		e.closers = append(e.closers, b.Close)
		primary = b
	case "http":
		return httpBackend, nil
	default:
		return nil, eris.Errorf("unsupported fetch backend %q", c.Fetch.Backend)
	}

	if c.Fetch.FallbackHTTP {
		return scrape.NewChain(primary, httpBackend), nil
	}
	return primary, nil
}

func newClassifier(c *config.Config) (classify.Classifier, error) {
	switch c.Classifier.Provider {
	case "anthropic":
		return classify.NewAnthropic(anthropic.NewClient(c.Anthropic.Key), c.Anthropic.Model), nil
	case "openai":
		return classify.NewOpenAI(openai.NewClient(c.OpenAI.Key, c.OpenAI.BaseURL), c.OpenAI.Model), nil
	default:
		return nil, eris.Errorf("unsupported classifier provider %q", c.Classifier.Provider)
	}
}

// newEngine builds a Runner with a fresh fetcher, so request counts and
// breaker state start at zero for every job.
func (e *enrichEnv) newEngine(ctl enrich.Control) (job.Runner, error) {
	c := e.cfg

	var opts []scrape.FetcherOption
	if c.Slack.NotifyErrors {
		opts = append(opts, scrape.WithFailureHook(func(ctx context.Context, url string, err error) {
			if nerr := e.notifier.Notify(ctx, fmt.Sprintf("skiptrace: fetch failed for %s: %v", url, err)); nerr != nil {
				zap.L().Debug("slack fetch-failure notice failed", zap.Error(nerr))
			}
		}))
	}

	fetcher := scrape.NewPageFetcher(e.backend, scrape.FetcherConfig{
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		MinDelay:          time.Duration(c.Fetch.MinDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(c.Fetch.MaxDelayMs) * time.Millisecond,
		FailureDelay:      time.Duration(c.Fetch.FailureDelayMs) * time.Millisecond,
		Breaker:           resilience.NewBreakerConfig(c.Fetch.BreakerThreshold, c.Fetch.BreakerResetSecs),
	}, opts...)

	crawler := crawl.New(fetcher, crawl.Config{
		BaseURL:             c.People.BaseURL,
		MaxPages:            c.People.MaxPages,
		MaxRelatives:        c.Enrich.MaxRelatives,
		RelativeConcurrency: c.Enrich.RelativeConcurrency,
		RelativeDelay:       time.Duration(c.Enrich.RelativeDelayMs) * time.Millisecond,
	})

	engine, err := enrich.NewEngine(enrich.Deps{
		Search:   crawler,
		Labeler:  phone.NewLabeler(e.classifier),
		Names:    e.classifier,
		Registry: e.registry,
		Control:  ctl,
	}, enrich.Config{
		RowConcurrency:    c.Enrich.RowConcurrency,
		IgnoreLLCPatterns: c.Enrich.IgnoreLLCPatterns,
		FundPatterns:      c.Enrich.FundPatterns,
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// Close releases backend resources.
func (e *enrichEnv) Close() {
	for _, fn := range e.closers {
		fn()
	}
}

// openStore opens the configured job store and applies migrations.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, store.PoolConfig{
		MaxConns: c.Store.MaxConns,
		MinConns: c.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
