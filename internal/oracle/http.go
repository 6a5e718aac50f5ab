package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient is an Oracle backed by a remote wikimapper "serve" instance.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Oracle = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the oracle API mounted at baseURL
// (e.g. "http://localhost:8080/api"). token may be empty.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OntologyClassExists implements Oracle.
func (c *HTTPClient) OntologyClassExists(ctx context.Context, uri string) (bool, error) {
	return c.exists(ctx, KindOntology, uri)
}

// PropertyExists implements Oracle.
func (c *HTTPClient) PropertyExists(ctx context.Context, uri string) (bool, error) {
	return c.exists(ctx, KindProperty, uri)
}

// ResourceExists implements Oracle.
func (c *HTTPClient) ResourceExists(ctx context.Context, uri string) (bool, error) {
	return c.exists(ctx, KindResource, uri)
}

func (c *HTTPClient) exists(ctx context.Context, kind Kind, uri string) (bool, error) {
	u := fmt.Sprintf("%s/exists/%s?uri=%s", c.baseURL, kind, url.QueryEscape(Normalize(uri)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("oracle: request %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("oracle: %s lookup: unexpected status %d", kind, resp.StatusCode)
	}
	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("oracle: decode response: %w", err)
	}
	return body.Exists, nil
}
