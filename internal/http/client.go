package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common errors.
var (
	ErrRangeNotSupported  = errors.New("http: server does not support range requests")
	ErrNotFound           = errors.New("http: resource not found")
	ErrForbidden          = errors.New("http: access forbidden")
	ErrUnauthorized       = errors.New("http: unauthorized")
	ErrServerError        = errors.New("http: server error")
	ErrPreconditionFailed = errors.New("http: object changed (etag mismatch)")
	ErrRangeMismatch      = errors.New("http: server returned a different range")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             30 * time.Second,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
		UserAgent:           "seqdl",
	}
}

// ObjectInfo contains metadata about a remote object.
type ObjectInfo struct {
	Size          int64
	ETag          string
	WeakETag      bool
	AcceptsRanges bool
	ContentType   string
	LastModified  time.Time
}

// Pin returns the precondition that keeps range requests on the version
// described by i.
func (i *ObjectInfo) Pin() Pin {
	return Pin{ETag: i.ETag, Weak: i.WeakETag, LastModified: i.LastModified}
}

// Pin identifies one version of an object for conditional range requests.
// The zero Pin sends no precondition.
type Pin struct {
	// ETag is the entity tag without quotes or weak prefix.
	ETag string

	// Weak marks ETag as a weak validator.
	Weak bool

	// LastModified is used when there is no strong ETag.
	LastModified time.Time
}

// apply sets the precondition header on req. If-Match always compares
// strongly, so a weak ETag never matches and falls back to
// If-Unmodified-Since.
func (p Pin) apply(req *http.Request) {
	switch {
	case p.ETag != "" && !p.Weak:
		req.Header.Set("If-Match", `"`+p.ETag+`"`)
	case !p.LastModified.IsZero():
		req.Header.Set("If-Unmodified-Since", p.LastModified.UTC().Format(http.TimeFormat))
	}
}

// RangeResponse represents a response from a range request.
type RangeResponse struct {
	Body          io.ReadCloser
	ContentLength int64
	ETag          string
}

// Client is an HTTP client tuned for many concurrent range requests against
// a single object.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // Range offsets refer to the raw bytes
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Head fetches object metadata.
func (c *Client) Head(ctx context.Context, url string) (*ObjectInfo, error) {
	resp, err := c.do(ctx, "head", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	})
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	etag := resp.Header.Get("ETag")
	info := &ObjectInfo{
		Size:          resp.ContentLength,
		ETag:          cleanETag(etag),
		WeakETag:      strings.HasPrefix(etag, "W/"),
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		ContentType:   resp.Header.Get("Content-Type"),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	return info, nil
}

// GetRange requests bytes [startByte, endByte] (inclusive, like the Range
// header). The request is conditional on pin, so every part of a download
// comes from the same object version.
func (c *Client) GetRange(ctx context.Context, url string, startByte, endByte int64, pin Pin) (*RangeResponse, error) {
	resp, err := c.do(ctx, "range", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", startByte, endByte))
		pin.apply(req)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// A 200 without Content-Range is the whole object, not our range.
		if resp.Header.Get("Content-Range") == "" {
			resp.Body.Close()
			return nil, ErrRangeNotSupported
		}
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, ErrRangeNotSupported
	case http.StatusPreconditionFailed:
		resp.Body.Close()
		return nil, ErrPreconditionFailed
	default:
		resp.Body.Close()
		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if cr := resp.Header.Get("Content-Range"); cr != "" {
		start, end, _, err := ParseContentRange(cr)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if start != startByte || end != endByte {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: asked for %d-%d, got %d-%d", ErrRangeMismatch, startByte, endByte, start, end)
		}
	}

	return &RangeResponse{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ETag:          cleanETag(resp.Header.Get("ETag")),
	}, nil
}

// do sends the request built by newReq, retrying transport errors and 5xx
// responses with backoff. Other responses are returned to the caller.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		// Server errors are retryable
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %s", ErrServerError, resp.Status)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%s request failed after %d attempts: %w", op, c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	return Backoff(ctx, attempt, c.opts.RetryBackoff, c.opts.RetryMaxBackoff)
}

// Backoff sleeps before retry number attempt (1-based): base doubled per
// attempt, capped at maxDelay, with 0.5x-1.5x jitter. It returns early with the
// context error if ctx is done.
func Backoff(ctx context.Context, attempt int, base, maxDelay time.Duration) error {
	d := base * time.Duration(1<<uint(attempt-1))
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}

	jitter := time.Duration(float64(d) * (0.5 + rand.Float64()))

	t := time.NewTimer(jitter)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// cleanETag removes quotes and the weak prefix from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	rest, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	rng, size, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	end, err = strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if size == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(size, 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}
