package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/skiptrace/internal/resilience"
)

const maxBodyBytes = 4 << 20

// HTTPBackend fetches pages directly with net/http. It is the cheapest
// backend and the first to be blocked.
type HTTPBackend struct {
	client    *http.Client
	userAgent string
}

// NewHTTPBackend creates an HTTPBackend with the given request timeout.
func NewHTTPBackend(timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (compatible; skiptrace/1.0)",
	}
}

func (h *HTTPBackend) Name() string { return "http" }

// FetchHTML returns the response body. Throttle and challenge pages come
// back as a resilience.BlockedError, 5xx as a TransientError.
func (h *HTTPBackend) FetchHTML(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "http: read body")
	}

	if isBlocked, bt := DetectBlock(resp, body); isBlocked {
		return "", blocked(targetURL, bt)
	}

	if resp.StatusCode >= 400 {
		err := eris.Errorf("http: status %d for %s", resp.StatusCode, targetURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}
	return decodeBody(resp.Header.Get("Content-Type"), body), nil
}

// decodeBody converts a non-UTF-8 body to UTF-8 using the Content-Type
// charset. Unknown charsets are passed through untouched.
func decodeBody(contentType string, body []byte) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body)
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(body)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
