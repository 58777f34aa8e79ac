// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/literature-engine/internal/httputil"
)

// Options configures the HTTP behaviour of a source.
type Options struct {
	// Client performs requests; http.DefaultClient when nil.
	Client *http.Client

	// UserAgent is sent with every request.
	UserAgent string

	// Delay is the minimum spacing between requests to this source.
	Delay time.Duration

	// Retries is the number of retries on HTTP 429/503.
	Retries int

	// RetryDelay is the exponential backoff base for retries.
	RetryDelay time.Duration

	// APIKey authenticates with sources that accept one.
	APIKey string

	// Email is the contact address for polite pools and Unpaywall.
	Email string

	// FailureThreshold is the consecutive failures before the source is unhealthy.
	FailureThreshold int
}

// apiClient is the rate-limited, retrying HTTP client shared by all sources.
// The limiter belongs to the source, so concurrent callers of the same
// source serialize on it.
type apiClient struct {
	source     string
	client     *http.Client
	limiter    *httputil.RateLimiter
	userAgent  string
	retries    int
	retryDelay time.Duration
}

func newAPIClient(source string, opts Options) *apiClient {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &apiClient{
		source:     source,
		client:     client,
		limiter:    httputil.NewRateLimiter(opts.Delay),
		userAgent:  opts.UserAgent,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
	}
}

// get issues a GET and returns the response when the status is 200.
// HTTP 429 becomes a *RateLimitError and 404 wraps ErrNotFound.
func (c *apiClient) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithBackoff(ctx, c.client, req, c.retries, c.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.source, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusTooManyRequests:
		wait := httputil.RetryAfter(resp)
		drain(resp)
		return nil, &RateLimitError{Source: c.source, RetryAfter: wait}
	case http.StatusNotFound:
		drain(resp)
		return nil, fmt.Errorf("%s: %w", c.source, ErrNotFound)
	default:
		drain(resp)
		return nil, fmt.Errorf("%s returned HTTP %d", c.source, resp.StatusCode)
	}
}

// getJSON issues a GET and decodes the JSON body into v.
func (c *apiClient) getJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	resp, err := c.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing %s response: %w", c.source, err)
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// notFound reports whether err is a 404 from a lookup.
func notFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
