// Package fetcher wraps calls to the scam-awareness backend. Every call
// returns a Result; transport, status and decode failures never escape as
// panics or bare errors, so callers pick their own fallback.
package fetcher

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

	"go.uber.org/zap"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
)

// FetchError is the typed failure carried by an unavailable Result.
type FetchError struct {
	Kind    ErrorKind
	Status  int // 0 when no response was received
	Message string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Result is either a JSON payload or a FetchError, never both.
type Result struct {
	Payload []byte
	Err     *FetchError
}

// OK reports whether the payload is usable.
func (r Result) OK() bool {
	return r.Err == nil
}

// Options describes one request.
type Options struct {
	Method string // GET when empty
	Query  url.Values
	Body   interface{} // JSON-encoded when non-nil
}

// Client issues JSON requests against a configurable API base.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a client. An empty baseURL leaves paths untouched. A
// zero timeout means requests are never cut short.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BaseURL returns the origin relative paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Resolve turns a relative API path into an absolute URL. Absolute URLs pass
// through unchanged.
func (c *Client) Resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// FetchJSON performs the request and validates that the body is JSON.
func (c *Client) FetchJSON(ctx context.Context, path string, opts Options) Result {
	start := time.Now()
	result := c.do(ctx, path, opts)

	fields := []zap.Field{
		zap.String("path", path),
		zap.Duration("latency", time.Since(start)),
	}
	if result.Err != nil {
		c.logger.Warn("backend source unavailable",
			append(fields, zap.Int("status", result.Err.Status), zap.String("kind", string(result.Err.Kind)), zap.String("error", result.Err.Message))...)
	} else {
		c.logger.Debug("backend fetch", fields...)
	}
	return result
}

// Get is FetchJSON with a GET and optional query. Under WithSharedGets the
// result is shared with identical GETs.
func (c *Client) Get(ctx context.Context, path string, query url.Values) Result {
	opts := Options{Method: http.MethodGet, Query: query}
	if s := sharedFrom(ctx); s != nil {
		return s.get(sharedKeyFor(c.Resolve(path), query), func() Result {
			return c.FetchJSON(ctx, path, opts)
		})
	}
	return c.FetchJSON(ctx, path, opts)
}

// Post is FetchJSON with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) Result {
	return c.FetchJSON(ctx, path, Options{Method: http.MethodPost, Body: body})
}

func (c *Client) do(ctx context.Context, path string, opts Options) Result {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.Resolve(path)
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return failure(KindTransport, 0, fmt.Sprintf("failed to encode request body: %v", err))
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return failure(KindTransport, 0, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return failure(KindTransport, 0, err.Error())
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(KindTransport, resp.StatusCode, fmt.Sprintf("failed to read body: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(KindStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if !json.Valid(payload) {
		return failure(KindDecode, resp.StatusCode, "response is not valid JSON")
	}

	return Result{Payload: payload}
}

func failure(kind ErrorKind, status int, msg string) Result {
	return Result{Err: &FetchError{Kind: kind, Status: status, Message: msg}}
}
