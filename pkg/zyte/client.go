// Package zyte fetches browser-rendered HTML through the Zyte API.
package zyte

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.zyte.com/v1"

// Client defines the Zyte API operations used by the page fetcher.
type Client interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)
}

// ExtractRequest is the body for POST /extract.
type ExtractRequest struct {
	URL         string `json:"url"`
	BrowserHTML bool   `json:"browserHtml,omitempty"`
	HTTPBody    bool   `json:"httpResponseBody,omitempty"`
}

// ExtractResponse is the response from POST /extract.
type ExtractResponse struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"statusCode"`
	BrowserHTML string `json:"browserHtml"`
}

// APIError is returned when Zyte responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zyte: HTTP %d: %s", e.StatusCode, e.Body)
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

// NewClient creates a new Zyte client. The API key is sent as the basic
// auth user name.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Extract(ctx context.Context, er ExtractRequest) (*ExtractResponse, error) {
	buf, err := json.Marshal(er)
	if err != nil {
		return nil, eris.Wrap(err, "zyte: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "zyte: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "zyte: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "zyte: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out ExtractResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "zyte: decode response")
	}
	return &out, nil
}
