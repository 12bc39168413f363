// Package upstream is the shared HTTP plumbing for third-party providers:
// one bounded timeout, status-to-kind mapping and per-provider metrics.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/pkg/metrics"
)

const (
	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// Client performs JSON calls against one provider.
type Client struct {
	provider string
	http     *http.Client
}

// New creates a client for provider. A non-positive timeout uses DefaultTimeout.
func New(provider string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{provider: provider, http: &http.Client{Timeout: timeout}}
}

// Provider returns the provider label used in metrics and errors.
func (c *Client) Provider() string { return c.provider }

// JSONRequest builds a request with a JSON body.
func JSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do sends req and decodes a 2xx JSON response into out (when non-nil).
//
// Transport failures and non-2xx answers become errkind.ErrUpstream;
// 429 becomes errkind.ErrRateLimited.
func (c *Client) Do(req *http.Request, out any) (err error) {
	op := c.provider + " " + req.Method + " " + req.URL.Path
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamCall(c.provider, float64(time.Since(start).Milliseconds()), err)
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		if resp.StatusCode == http.StatusTooManyRequests {
			return errkind.Wrap(op, errkind.ErrRateLimited, cause)
		}
		return errkind.Wrap(op, errkind.ErrUpstream, cause)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errkind.Wrap(op, errkind.ErrUpstream, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
