// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil implements the single-GET transport every stage builds on:
// per-attempt timeout, bounded retries with exponential backoff, and text
// decoding that never fails on a successful response.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/pdiddy/book-harvester/pkg/types"
)

// ErrExhausted is returned by Get once every attempt for a URL has failed.
var ErrExhausted = errors.New("all attempts failed")

// ErrBadStatus is wrapped by StatusError for any response other than 200.
var ErrBadStatus = errors.New("unexpected status")

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrBadStatus }

// Fetcher performs GET requests against the archive.
type Fetcher struct {
	client  *http.Client
	cfg     types.HTTPConfig
	log     *slog.Logger
	limiter *rate.Limiter
	timer   retry.Timer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client. The client's own Timeout is left alone;
// attempts are bounded by HTTPConfig.Timeout through the request context.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithLimiter makes every attempt wait on l before it is sent.
func WithLimiter(l *rate.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithTimer replaces the clock used for backoff waits. Tests use it to
// observe the schedule without sleeping.
func WithTimer(t retry.Timer) Option {
	return func(f *Fetcher) { f.timer = t }
}

// NewFetcher returns a Fetcher for cfg. Zero fields fall back to the
// package defaults in types.
func NewFetcher(cfg types.HTTPConfig, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = types.DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = types.DefaultBackoffBase
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	f := &Fetcher{
		client: http.DefaultClient,
		cfg:    cfg,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.limiter == nil && cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

// Fetch returns the decoded body of url, or false once every attempt has
// failed. It never returns a decoding failure for a 200 response.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, bool) {
	text, err := f.Get(ctx, url)
	if err != nil {
		return "", false
	}
	return text, true
}

// Get is Fetch with the failure reason. A timeout, a transport error, and a
// non-200 status each consume one attempt. Waits between attempts double
// from BackoffBase: 1s, 2s, 4s with the defaults.
func (f *Fetcher) Get(ctx context.Context, url string) (string, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(f.cfg.MaxAttempts)),
		retry.Delay(f.cfg.BackoffBase),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if f.timer != nil {
		opts = append(opts, retry.WithTimer(f.timer))
	}

	attempt := 0
	text, err := retry.DoWithData(func() (string, error) {
		attempt++
		text, err := f.once(ctx, url)
		if err == nil {
			return text, nil
		}
		f.logFailure(url, attempt, err)
		if ctx.Err() != nil {
			return "", retry.Unrecoverable(err)
		}
		return "", err
	}, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.log.Warn("exhausted attempts", "url", url, "attempts", attempt)
		return "", fmt.Errorf("%w for %s: %w", ErrExhausted, url, err)
	}
	return text, nil
}

// once performs a single attempt bounded by the configured timeout.
func (f *Fetcher) once(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return Decode(body, resp.Header.Get("Content-Type")), nil
}

func (f *Fetcher) logFailure(url string, attempt int, err error) {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		f.log.Error("failed to fetch", "url", url, "status", se.Code, "attempt", attempt)
	case IsTimeout(err):
		f.log.Warn("timeout fetching", "url", url, "attempt", attempt)
	default:
		f.log.Error("error fetching", "url", url, "attempt", attempt, "error", err)
	}
}

// IsTimeout reports whether err came from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
