// Package httpclient is a thin JSON HTTP client with interceptor hooks
// around the request/response pipeline.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config carries the per-client request defaults.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Headers are applied to every request before BeforeRequest runs.
	Headers http.Header

	// Timeout bounds each request end to end. Zero means no timeout.
	Timeout time.Duration
}

// Hooks intercept the pipeline. Any hook returning an error aborts the
// request; the error then flows through CatchError when one is installed.
type Hooks struct {
	// BeforeRequest runs after the request is built, before it is sent.
	BeforeRequest func(*http.Request) error

	// AfterResponse runs on every decoded response, including non-2xx.
	AfterResponse func(*Response) error

	// CatchError maps pipeline errors before they return to the caller.
	CatchError func(error) error
}

// Response is the decoded result of one request. Status is reported as-is;
// the client does not treat non-2xx as an error.
type Response struct {
	Status int
	Header http.Header
	Body   json.RawMessage
}

// Decode unmarshals the response body into into.
func (r *Response) Decode(into any) error {
	return json.Unmarshal(r.Body, into)
}

// Client issues JSON requests against a base URL.
type Client struct {
	config Config
	hooks  Hooks
	client *http.Client
}

// New creates a client from config and hooks.
func New(config Config, hooks Hooks) *Client {
	return &Client{
		config: config,
		hooks:  hooks,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Get issues a GET request to path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with body JSON-encoded.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with body JSON-encoded.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// Patch issues a PATCH request with body JSON-encoded.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE request to path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	resp, err := c.roundTrip(ctx, method, path, body)
	if err != nil && c.hooks.CatchError != nil {
		return nil, c.hooks.CatchError(err)
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.config.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hooks.BeforeRequest != nil {
		if err := c.hooks.BeforeRequest(req); err != nil {
			return nil, fmt.Errorf("before request: %w", err)
		}
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   payload,
	}

	if c.hooks.AfterResponse != nil {
		if err := c.hooks.AfterResponse(resp); err != nil {
			return nil, fmt.Errorf("after response: %w", err)
		}
	}
	return resp, nil
}

func (c *Client) url(path string) string {
	if c.config.BaseURL == "" {
		return path
	}
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// MergeConfig overlays override onto base. Non-zero override fields win;
// headers merge key-wise with override values replacing base values.
func MergeConfig(base, override Config) Config {
	merged := base
	if override.BaseURL != "" {
		merged.BaseURL = override.BaseURL
	}
	if override.Timeout != 0 {
		merged.Timeout = override.Timeout
	}
	if len(override.Headers) > 0 {
		merged.Headers = make(http.Header, len(base.Headers)+len(override.Headers))
		for key, values := range base.Headers {
			merged.Headers[key] = append([]string(nil), values...)
		}
		for key, values := range override.Headers {
			merged.Headers[key] = append([]string(nil), values...)
		}
	}
	return merged
}

// MergeBody overlays override onto base key-wise. Neither input is mutated.
func MergeBody(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		merged[key] = value
	}
	return merged
}
