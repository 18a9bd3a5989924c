// Package fetch is the engine's HTTP surface: a shared client with
// per-request timeouts, retrying idempotent GETs, budgeted streaming
// reads, and download-to-temp-file for media enclosures.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultTimeout bounds a single network attempt. Providers that need a
// different budget pass their own context deadline.
const DefaultTimeout = 30 * time.Second

// DefaultDownloadTimeout bounds a whole media download when the caller's
// context carries no deadline. Enclosures run to hours of audio, so the
// budget is much wider than DefaultTimeout, but it still exists: a
// stalled stream must become a timeout, never a hang.
const DefaultDownloadTimeout = 15 * time.Minute

// maxResponseBytes caps in-memory response bodies (watch pages, feeds,
// caption payloads). Media downloads stream to disk instead.
const maxResponseBytes = 16 * 1024 * 1024

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// ScrapeFunc fetches a URL through a third-party scraping service. Used
// only as a fallback when the direct fetch hits a blocked/captcha page.
type ScrapeFunc func(ctx context.Context, url string) ([]byte, error)

// Client issues HTTP requests with consistent headers and timeouts.
type Client struct {
	retry *retryablehttp.Client
	plain *http.Client

	// DownloadTimeout replaces DefaultDownloadTimeout when set.
	DownloadTimeout time.Duration
}

// NewClient builds the shared fetch client. GETs retry transient failures;
// POSTs go through a plain client so provider calls are never replayed.
func NewClient() *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil

	return &Client{
		retry: rc,
		plain: &http.Client{},
	}
}

// Get fetches url and returns the body, reading against the remaining
// context budget. Non-2xx statuses are returned as errors with the code.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, wrapTimeout(ctx, err)
	}
	defer resp.Body.Close()

	body, err := readBudgeted(ctx, resp.Body, maxResponseBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &StatusError{Code: resp.StatusCode, Body: body}
	}
	return body, nil
}

// Post sends body to url and returns the response body. Not retried.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte, headers map[string]string) ([]byte, error) {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, wrapTimeout(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := readBudgeted(ctx, resp.Body, maxResponseBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, &StatusError{Code: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// Download streams url into a temp file and returns its path and size.
// The caller removes the file when done.
func (c *Client) Download(ctx context.Context, url string) (string, int64, error) {
	budget := c.DownloadTimeout
	if budget <= 0 {
		budget = DefaultDownloadTimeout
	}
	ctx, cancel := ensureDeadlineFor(ctx, budget)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.retry.Do(req)
	if err != nil {
		return "", 0, wrapTimeout(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &StatusError{Code: resp.StatusCode}
	}

	f, err := os.CreateTemp("", "mediascribe-*"+guessExt(url, resp.Header.Get("Content-Type")))
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, newBudgetReader(ctx, resp.Body))
	closeErr := f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", 0, wrapTimeout(ctx, err)
	}
	if closeErr != nil {
		os.Remove(f.Name())
		return "", 0, closeErr
	}
	return f.Name(), n, nil
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// IsTimeout reports whether err was caused by a deadline expiry, so the
// caller can tag it distinctly in fallback notes.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func ensureDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return ensureDeadlineFor(ctx, DefaultTimeout)
}

func ensureDeadlineFor(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func wrapTimeout(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("request timed out: %w", context.DeadlineExceeded)
	}
	return err
}

// budgetReader races every chunk read against the request's remaining
// budget rather than a fresh per-chunk timeout, so a provider trickling
// small chunks cannot reset the clock. On expiry the underlying stream is
// closed; errors from that cleanup are swallowed so they never mask the
// timeout itself.
type budgetReader struct {
	ctx context.Context
	rc  io.ReadCloser
}

func newBudgetReader(ctx context.Context, rc io.ReadCloser) *budgetReader {
	return &budgetReader{ctx: ctx, rc: rc}
}

func (b *budgetReader) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		_ = b.rc.Close()
		return 0, fmt.Errorf("stream read exceeded budget: %w", context.DeadlineExceeded)
	}
	n, err := b.rc.Read(p)
	if err != nil && b.ctx.Err() != nil {
		_ = b.rc.Close()
		return n, fmt.Errorf("stream read exceeded budget: %w", context.DeadlineExceeded)
	}
	return n, err
}

func readBudgeted(ctx context.Context, rc io.ReadCloser, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(newBudgetReader(ctx, rc), limit))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func guessExt(url, contentType string) string {
	if ext := filepath.Ext(stripQuery(url)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch contentType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "video/mp4":
		return ".mp4"
	}
	return ".bin"
}

func stripQuery(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' || url[i] == '#' {
			return url[:i]
		}
	}
	return url
}
