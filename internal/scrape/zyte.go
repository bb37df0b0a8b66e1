package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/skiptrace/internal/resilience"
	"github.com/sells-group/skiptrace/pkg/zyte"
)

// ZyteBackend renders pages through the Zyte extract API.
type ZyteBackend struct {
	client zyte.Client
}

// NewZyteBackend wraps a Zyte client.
func NewZyteBackend(client zyte.Client) *ZyteBackend {
	return &ZyteBackend{client: client}
}

func (z *ZyteBackend) Name() string { return "zyte" }

func (z *ZyteBackend) FetchHTML(ctx context.Context, targetURL string) (string, error) {
	resp, err := z.client.Extract(ctx, zyte.ExtractRequest{URL: targetURL, BrowserHTML: true})
	if err != nil {
		return "", classifyAPIError(err, "zyte")
	}
	if resp.StatusCode >= 400 {
		err := eris.Errorf("zyte: target status %d for %s", resp.StatusCode, targetURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}
	return resp.BrowserHTML, nil
}
