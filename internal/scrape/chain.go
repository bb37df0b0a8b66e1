package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries backends in order and returns the first non-empty page.
type Chain struct {
	backends []Backend
}

// NewChain creates a Chain over the given backends.
func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// FetchHTML returns the first backend's success. When every backend
// fails, the last error is returned unwrapped so callers can classify it.
func (c *Chain) FetchHTML(ctx context.Context, targetURL string) (string, error) {
	var lastErr error
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		html, err := b.FetchHTML(ctx, targetURL)
		if err == nil && strings.TrimSpace(html) != "" {
			return html, nil
		}
		if err == nil {
			err = eris.Errorf("scrape: %s returned an empty page", b.Name())
		}
		zap.L().Debug("scrape: backend failed, trying next",
			zap.String("backend", b.Name()),
			zap.String("url", targetURL),
			zap.Error(err),
		)
		lastErr = err
	}
	if lastErr == nil {
		return "", eris.New("scrape: no backends configured")
	}
	return "", lastErr
}
