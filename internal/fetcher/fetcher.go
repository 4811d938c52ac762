package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	json "github.com/goccy/go-json"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// ErrExhausted is returned when every attempt to fetch a document has failed.
var ErrExhausted = errors.New("all fetch attempts failed")

// Fetcher retrieves JSON documents over HTTP with a bounded number of attempts.
//
// Each attempt is a single GET; the retryablehttp client underneath has its own
// retries disabled so that the attempt count seen by the server is exactly the
// configured bound. A failed attempt is logged as a warning and the next one
// starts immediately, without backoff.
//
// See: https://context7.com/golang/go for Go HTTP client documentation
type Fetcher struct {
	client      *retryablehttp.Client
	userAgent   string
	maxAttempts int
	log         log.L
}

// Options configures the Fetcher behavior.
type Options struct {
	// UserAgent sets the User-Agent header for requests
	UserAgent string
	// MaxAttempts is the total number of attempts per document, at least 1
	MaxAttempts int
	// Timeout bounds a single attempt, zero leaves it to the transport
	Timeout time.Duration
}

// DefaultOptions returns sensible default options for the Fetcher.
func DefaultOptions() Options {
	return Options{
		UserAgent:   "tsm3u/1.0",
		MaxAttempts: 3,
		Timeout:     30 * time.Second,
	}
}

// New creates a new Fetcher with the given options.
//
// Parameters:
//   - opts: attempt bound, per-request timeout and User-Agent
//   - l: logger receiving one warning per failed attempt, nil disables logging
func New(opts Options, l log.L) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil // Disable default logging
	client.HTTPClient.Timeout = opts.Timeout

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if l == nil {
		l = log.NoOp
	}

	return &Fetcher{
		client:      client,
		userAgent:   opts.UserAgent,
		maxAttempts: opts.MaxAttempts,
		log:         l,
	}
}

// Fetch downloads the document at url and returns its body once it parses as JSON.
//
// An attempt fails on a transport error, a status outside 200-299, or a body
// that is not valid JSON. After the last failed attempt the returned error wraps
// ErrExhausted together with the last failure reason.
//
// Parameters:
//   - ctx: Context for cancellation, checked between attempts
//   - url: The URL to fetch
//
// Returns the raw JSON body and any error encountered.
func (f *Fetcher) Fetch(ctx context.Context, url string) (json.RawMessage, error) {
	var body json.RawMessage
	attempt := 0

	rp := repeater.NewDefault(f.maxAttempts, 0)
	err := rp.Do(ctx, func() error {
		attempt++
		res, e := f.attempt(ctx, url)
		if e != nil {
			f.log.Logf("[WARN] fetch %s failed (attempt %d/%d): %v", url, attempt, f.maxAttempts, e)
			return e
		}
		body = res
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil && body == nil {
		return nil, fmt.Errorf("fetch %s interrupted: %w", url, ctxErr)
	}
	if err != nil || body == nil {
		return nil, fmt.Errorf("%w: %s after %d attempt(s): %v", ErrExhausted, url, attempt, err)
	}

	return body, nil
}

// attempt performs a single GET and validates the response.
func (f *Fetcher) attempt(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}

	return json.RawMessage(body), nil
}
