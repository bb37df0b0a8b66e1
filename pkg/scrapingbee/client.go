// Package scrapingbee fetches rendered HTML through the ScrapingBee API.
package scrapingbee

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://app.scrapingbee.com/api/v1"

// Client defines the ScrapingBee operations used by the page fetcher.
type Client interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}

// FetchRequest describes one page fetch.
type FetchRequest struct {
	URL      string
	RenderJS bool
	WaitMs   int
}

// APIError is returned when ScrapingBee responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrapingbee: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new ScrapingBee client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Fetch(ctx context.Context, fr FetchRequest) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("url", fr.URL)
	q.Set("render_js", strconv.FormatBool(fr.RenderJS))
	if fr.WaitMs > 0 {
		q.Set("wait", strconv.Itoa(fr.WaitMs))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "scrapingbee: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "scrapingbee: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "scrapingbee: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}
	return string(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
