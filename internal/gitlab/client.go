// Package gitlab is a minimal GitLab REST v4 client covering exactly the
// tracker capability the reporter needs: project lookup, lazy issue listing,
// issue creation, and single-request issue updates.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dicklesworthstone/glreporter/internal/tracker"
)

// Default client tuning.
const (
	DefaultTimeout = 10 * time.Second
	DefaultPerPage = 100

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4096
)

// Client talks to one GitLab instance with one token.
type Client struct {
	baseURL    string
	token      string
	perPage    int
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPerPage sets the page size used when listing issues.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// NewClient creates a client for the GitLab instance at host (e.g.
// "https://gitlab.com") authenticating with a private token.
func NewClient(host, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(host, "/"),
		token:   token,
		perPage: DefaultPerPage,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ tracker.Tracker = (*Client)(nil)

// do performs one API request. A non-nil out is decoded from the response
// body; the returned header gives list endpoints access to paging fields.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (http.Header, error) {
	u := c.baseURL + "/api/v4" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response for %s %s: %w", method, path, err)
		}
	}
	return resp.Header, nil
}

// apiError converts an error response into the tracker taxonomy, keeping a
// bounded excerpt of the body as the message.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := ""
	var decoded struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		switch {
		case decoded.Error != "":
			msg = decoded.Error
		case decoded.Message != nil:
			msg = fmt.Sprint(decoded.Message)
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	return &tracker.APIError{StatusCode: resp.StatusCode, Message: msg}
}
