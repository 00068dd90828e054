// Package httpclient issues the GET requests generated by simulated users.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Method is the only method issued by the load generator.
const Method = http.MethodGet

// Outcome is the result of one issued request.
type Outcome struct {
	// OK is true when no transport error occurred and the status is below 400
	OK bool

	// StatusCode is zero when the request never produced a response
	StatusCode int

	// Elapsed is the time spent until the body was consumed or the error surfaced
	Elapsed time.Duration

	// Err is the failure cause; nil when OK
	Err error

	// Cancelled is true when the caller's context ended the request. Such a
	// request says nothing about the target and is not recorded.
	Cancelled bool
}

// HTTPError reports a response whose status marks it as failed.
type HTTPError struct {
	StatusCode int
	Path       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTPError: %d %s for url: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Path)
}

// Listener receives every completed request. The aggregator implements it.
type Listener interface {
	RecordSuccess(method, name string, elapsed time.Duration)
	RecordFailure(method, name string, elapsed time.Duration, err error)
}

// Config contains HTTP client configuration.
type Config struct {
	// Host is the routing root prepended to every path (e.g. https://example.com)
	Host string

	// Timeout for a single request including body read
	Timeout time.Duration

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// Listener is notified of every outcome (optional)
	Listener Listener

	// Transport overrides the pooled transport (tests)
	Transport http.RoundTripper
}

// DefaultConfig returns sensible defaults for load testing.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		MaxIdleConnsPerHost: 100,
	}
}

// Client is the HTTP collaborator shared by all simulated users.
type Client struct {
	host     string
	client   *http.Client
	listener Listener
}

// New creates a client with a shared, pooled transport.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        1000,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &Client{
		host: strings.TrimRight(cfg.Host, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		listener: cfg.Listener,
	}
}

// Issue performs a GET for path relative to the configured host.
//
// Redirects are followed by the underlying client. The body is drained so the
// connection can be reused. Issue never returns an error: failures are
// reported through the Outcome and the listener. A request aborted by ctx is
// marked Cancelled and the listener is not notified.
func (c *Client) Issue(ctx context.Context, path string) Outcome {
	start := time.Now()
	outcome := c.do(ctx, path)
	outcome.Elapsed = time.Since(start)

	if !outcome.OK && cancelledBy(ctx, outcome.Err) {
		outcome.Cancelled = true
		return outcome
	}

	if c.listener != nil {
		if outcome.OK {
			c.listener.RecordSuccess(Method, path, outcome.Elapsed)
		} else {
			c.listener.RecordFailure(Method, path, outcome.Elapsed, outcome.Err)
		}
	}

	return outcome
}

func (c *Client) do(ctx context.Context, path string) Outcome {
	if !strings.HasPrefix(path, "/") {
		return Outcome{Err: fmt.Errorf("path must start with '/': %q", path)}
	}

	req, err := http.NewRequestWithContext(ctx, Method, c.host+path, nil)
	if err != nil {
		return Outcome{Err: fmt.Errorf("failed to build request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Err: ctxErr}
		}
		return Outcome{Err: err}
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{StatusCode: resp.StatusCode, Err: ctxErr}
		}
		return Outcome{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return Outcome{StatusCode: resp.StatusCode, Err: &HTTPError{StatusCode: resp.StatusCode, Path: path}}
	}

	return Outcome{OK: true, StatusCode: resp.StatusCode}
}

// cancelledBy reports whether err is the result of ctx ending. The client
// timeout produces its own error and still counts as a failure.
func cancelledBy(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return ctxErr != nil && err != nil && errors.Is(err, ctxErr)
}

// CloseIdleConnections releases pooled connections at the end of a run.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
