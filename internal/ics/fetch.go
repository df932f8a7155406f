package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	appLog "perpetcal/internal/log"
)

const (
	DefaultUserAgent    = "perpetcal/1.0"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// FetchOptions configures a Fetcher. Zero values fall back to the defaults
// above; Retries defaults to no retry at all.
type FetchOptions struct {
	Timeout      time.Duration
	Retries      int
	UserAgent    string
	MaxBodyBytes int64
}

// Fetcher downloads ICS feeds over HTTP(S). It holds no per-feed state and
// is safe for concurrent use.
type Fetcher struct {
	client       *retryablehttp.Client
	userAgent    string
	maxBodyBytes int64
}

// NewFetcher creates a Fetcher backed by a retrying HTTP client.
func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = opts.Timeout
	// Hand the final response back so the status can be reported.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Fetch retrieves the feed at rawURL. Every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.fetch(ctx, rawURL)
	if err != nil {
		appLog.Error("ics fetch failed", err, "url", redactURL(rawURL))
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := validateFeedURL(rawURL); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Debug("ics fetch start", "url", redactURL(rawURL))

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	// Read one byte past the cap to tell "exactly at the limit" from "over".
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("feed exceeds %d bytes", f.maxBodyBytes)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty response body")
	}

	appLog.Info("ics fetch success",
		"url", redactURL(rawURL),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

func validateFeedURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("feed URL is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported feed URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("feed URL has no host")
	}
	return nil
}

// redactURL hides path and query of a feed URL for logging; private
// calendar links carry their secret there.
//
//	https://example.com/private/abcd.ics?token=x -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += len("://")

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' && u[j] != '#' {
		j++
	}

	host := u[:j]
	if at := strings.LastIndexByte(host[i:], '@'); at != -1 {
		host = u[:i] + host[i+at+1:]
	}
	return host + redactedSuffix
}

// RedactURL is redactURL for callers outside the package.
func RedactURL(u string) string { return redactURL(u) }
