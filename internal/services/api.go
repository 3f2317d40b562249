// HTTP client for the service API with typed errors and block detection
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// APIError is a non-2xx response from the service. Blocked marks responses
// that are an edge-network challenge rather than an application error; the
// status code alone cannot tell the two apart.
type APIError struct {
	StatusCode int
	Blocked    bool
	Body       string
}

func (e *APIError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("blocked by edge network (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error: status %d", e.StatusCode)
}

// APIClient performs authenticated requests against the service API.
// Read requests (GET) retry transparently on transient failures; write
// requests (POST, PUT, DELETE) are issued exactly once per call so the
// caller controls retries and pacing.
type APIClient struct {
	baseURL string
	read    *http.Client
	write   *http.Client
	token   func() string
}

// NewAPIClient creates a client for the given base URL. tokenFn supplies
// the current bearer token per request so session refreshes propagate.
// transport may be nil to use the default.
func NewAPIClient(baseURL string, tokenFn func() string, transport http.RoundTripper) *APIClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	if transport != nil {
		rc.HTTPClient.Transport = transport
	}

	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		read:    rc.StandardClient(),
		write:   &http.Client{Transport: transport},
		token:   tokenFn,
	}
}

// Get performs a GET request and decodes the JSON response into result.
func (c *APIClient) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, c.read, http.MethodGet, path, nil, result)
}

// Post performs a POST request with a JSON body. A nil body sends no payload.
func (c *APIClient) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, c.write, http.MethodPost, path, body, result)
}

// Put performs a PUT request with a JSON body.
func (c *APIClient) Put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, c.write, http.MethodPut, path, body, result)
}

// Delete performs a DELETE request.
func (c *APIClient) Delete(ctx context.Context, path string) error {
	return c.do(ctx, c.write, http.MethodDelete, path, nil, nil)
}

func (c *APIClient) do(ctx context.Context, client *http.Client, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Blocked:    blockedResponse(resp, raw),
			Body:       truncate(string(raw), 512),
		}
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// blockedResponse reports whether the response is an edge-network challenge
// page. The service fronts its API with Cloudflare; a challenge arrives as
// 403 or 503 with either the cf-mitigated header or an HTML interstitial.
func blockedResponse(resp *http.Response, body []byte) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	if strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge") {
		return true
	}
	text := string(body)
	return strings.Contains(text, "Just a moment") || strings.Contains(text, "_cf_chl_opt")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
