// Package storage fetches document bytes from the object store's HTTP
// gateway. Uploads happen directly against the store; the pipeline only
// ever reads.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches stored documents over HTTP. Storage locations are paths
// relative to the gateway base URL, or absolute URLs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithToken sets the bearer token attached to fetch requests.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a storage client.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the document at the given storage location.
func (c *Client) Fetch(ctx context.Context, location string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(location), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: storage returned status %d", response.StatusCode)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}
	return data, nil
}

// Delete removes the document at the given storage location.
func (c *Client) Delete(ctx context.Context, location string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resolve(location), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusNoContent && response.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete document: storage returned status %d", response.StatusCode)
	}
	return nil
}

func (c *Client) resolve(location string) string {
	if parsed, err := url.Parse(location); err == nil && parsed.IsAbs() {
		return location
	}
	return c.baseURL + "/" + strings.TrimLeft(location, "/")
}
