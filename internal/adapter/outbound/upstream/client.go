// Package upstream implements the outbound HTTP client for the control
// server. A single pooled client is shared by all requests; TLS verification
// is disabled because the fleet's control servers ship self-signed
// certificates.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each upstream call.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of an upstream response is buffered.
const maxResponseBytes = 16 << 20

// ErrUnreachable wraps transport-level failures (DNS, refused connection,
// timeout). Callers translate it to a 502.
var ErrUnreachable = errors.New("upstream unreachable")

// Response is a fully-buffered upstream reply.
type Response struct {
	Status int
	Body   []byte
}

// Client forwards request bodies to the control server.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client targeting baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // protocol requirement
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the current target base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL retargets the client. Used when the persisted target_url setting
// changes at runtime.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Post forwards body to baseURL+path as JSON and buffers the reply.
// Transport failures return ErrUnreachable; any HTTP status is a success at
// this layer and is passed through in Response.Status.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := c.BaseURL() + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}
