// Package bizfile looks up California business entities and their agents
// through the BizFile Online (Secretary of State) JSON API.
package bizfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://bizfileonline.sos.ca.gov"

// Client defines the BizFile operations used for LLC owner resolution.
type Client interface {
	// LookupAgent searches entities by name and returns the agent of the
	// first hit. An empty Agent means no entity or no agent.
	LookupAgent(ctx context.Context, llcName string) (*Agent, error)
	// LookupAgentAddress returns the mailing and principal addresses of
	// the entity with the given ID.
	LookupAgentAddress(ctx context.Context, id string) (*AgentAddresses, error)
}

// Agent is the registered agent of an entity.
type Agent struct {
	ID        string
	FirstName string
	LastName  string
	FullName  string
}

// Empty reports whether the lookup yielded no agent name.
func (a *Agent) Empty() bool {
	return a == nil || a.FullName == ""
}

// Address holds a normalized, lower-cased address.
type Address struct {
	Street string
	City   string
	State  string
}

// AgentAddresses holds an entity's filing addresses.
type AgentAddresses struct {
	Mailing   Address
	Principal Address
}

// APIError is returned when BizFile responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bizfile: HTTP %d: %s", e.StatusCode, e.Body)
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
	baseURL string
	http    *http.Client
}

// NewClient creates a new BizFile client. The API is public and needs no key.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	SearchValue  string `json:"SEARCH_VALUE"`
	SearchTypeID string `json:"SEARCH_TYPE_ID"`
}

type searchResponse struct {
	Rows json.RawMessage `json:"rows"`
}

type searchRow struct {
	ID    json.RawMessage `json:"ID"`
	Agent string          `json:"AGENT"`
}

func (c *httpClient) LookupAgent(ctx context.Context, llcName string) (*Agent, error) {
	var resp searchResponse
	body := searchRequest{SearchValue: llcName, SearchTypeID: "1"}
	if err := c.post(ctx, "/api/Records/businesssearch", body, &resp); err != nil {
		return nil, eris.Wrap(err, "bizfile: business search")
	}

	row, err := firstRow(resp.Rows)
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: decode search rows")
	}
	if row == nil {
		return &Agent{}, nil
	}

	agent := &Agent{ID: rawID(row.ID), FullName: row.Agent}
	agent.FirstName, agent.LastName = SplitAgentName(row.Agent)
	return agent, nil
}

type detailResponse struct {
	Drawer []struct {
		Label string `json:"LABEL"`
		Value string `json:"VALUE"`
	} `json:"DRAWER_DETAIL_LIST"`
}

func (d *detailResponse) value(label string) string {
	for _, item := range d.Drawer {
		if item.Label == label {
			return item.Value
		}
	}
	return ""
}

func (c *httpClient) LookupAgentAddress(ctx context.Context, id string) (*AgentAddresses, error) {
	var resp detailResponse
	path := "/api/FilingDetail/business/" + url.PathEscape(id) + "/false"
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, eris.Wrap(err, "bizfile: filing detail")
	}
	return &AgentAddresses{
		Mailing:   ParseAddressBlock(resp.value("Mailing Address")),
		Principal: ParseAddressBlock(resp.value("Principal Address")),
	}, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "skiptrace/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
