package scrape

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/skiptrace/internal/resilience"
	"github.com/sells-group/skiptrace/pkg/scrapingbee"
	"github.com/sells-group/skiptrace/pkg/zyte"
)

// ScrapingBeeBackend renders pages through the ScrapingBee proxy API.
type ScrapingBeeBackend struct {
	client   scrapingbee.Client
	renderJS bool
	waitMs   int
}

// NewScrapingBeeBackend wraps a ScrapingBee client.
func NewScrapingBeeBackend(client scrapingbee.Client, renderJS bool, waitMs int) *ScrapingBeeBackend {
	return &ScrapingBeeBackend{client: client, renderJS: renderJS, waitMs: waitMs}
}

func (s *ScrapingBeeBackend) Name() string { return "scrapingbee" }

func (s *ScrapingBeeBackend) FetchHTML(ctx context.Context, targetURL string) (string, error) {
	html, err := s.client.Fetch(ctx, scrapingbee.FetchRequest{
		URL:      targetURL,
		RenderJS: s.renderJS,
		WaitMs:   s.waitMs,
	})
	if err != nil {
		return "", classifyAPIError(err, "scrapingbee")
	}
	return html, nil
}

// classifyAPIError marks provider throttling and outages as transient so
// they count toward the host breaker.
func classifyAPIError(err error, provider string) error {
	wrapped := eris.Wrapf(err, "%s: fetch", provider)

	var status int
	var sbErr *scrapingbee.APIError
	var zErr *zyte.APIError
	switch {
	case errors.As(err, &sbErr):
		status = sbErr.StatusCode
	case errors.As(err, &zErr):
		status = zErr.StatusCode
	}
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(wrapped, status)
	}
	return wrapped
}
