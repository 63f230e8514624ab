// Package httpjson is the small JSON-over-HTTP client shared by the
// embedding and LLM provider adapters.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxExcerpt bounds how much of an error body is kept on a StatusError.
const maxExcerpt = 512

// ErrMalformed marks a 2xx response whose body could not be decoded.
var ErrMalformed = errors.New("malformed response")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Provider   string
	Code       int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Client sends JSON requests to one provider base URL.
type Client struct {
	name   string
	base   string
	header http.Header
	hc     *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBearer sends key as a bearer token. An empty key sends nothing.
func WithBearer(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.header.Set("Authorization", "Bearer "+key)
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// New creates a client for the provider called name.
func New(name, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		name:   name,
		base:   strings.TrimRight(baseURL, "/"),
		header: http.Header{},
		hc:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name used in error messages.
func (c *Client) Name() string { return c.name }

// Post sends in as JSON to path and decodes the response into out.
// Transport failures are wrapped with the provider name and keep their
// cause; non-2xx answers become *StatusError; undecodable bodies wrap
// ErrMalformed.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	body, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, ErrMalformed, err)
	}
	return nil
}

// Get issues a GET to path and discards the body. It is used for
// reachability checks.
func (c *Client) Get(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodGet, path, http.NoBody)
	return err
}

// Close drops idle connections.
func (c *Client) Close() {
	c.hc.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header = c.header.Clone()
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Provider:   c.name,
			Code:       resp.StatusCode,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       excerpt(data),
		}
	}
	return data, nil
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty response body"
	}
	if len(s) > maxExcerpt {
		s = s[:maxExcerpt] + "..."
	}
	return s
}
