// Package bref scrapes season schedules and box scores from
// basketball-reference.com style pages.
package bref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent is sent when none is configured.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultRetryAfter = 60 * time.Second
	maxRetryAfter     = 10 * time.Minute
	maxBodyBytes      = 16 << 20
)

// ErrNotFound is returned for pages the site does not have.
var ErrNotFound = errors.New("page not found")

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d", e.URL, e.StatusCode)
}

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	RequestsPerMinute int
	MaxRetries        int
	UserAgent         string
	Timeout           time.Duration
	Logger            *logrus.Entry
}

// HTTPFetcher fetches pages with a token bucket limiter, honours 429
// Retry-After and stops calling a failing site through a circuit breaker.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	userAgent  string
	maxRetries int
	backoff    time.Duration
	logger     *logrus.Entry
	sleep      func(ctx context.Context, d time.Duration) error
}

type pageResponse struct {
	status     int
	body       []byte
	retryAfter time.Duration
}

// NewHTTPFetcher creates a fetcher. RequestsPerMinute defaults to 20.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 20
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("component", "bref_fetcher")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "basketball-reference",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("⚠️  Fetch circuit breaker state changed")
		},
	})

	return &HTTPFetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1),
		breaker:    breaker,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		backoff:    2 * time.Second,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Fetch performs a rate-limited GET. 429 responses wait for Retry-After
// and 5xx or transport failures back off exponentially, each up to
// MaxRetries times. 404 returns ErrNotFound.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		out, err := f.breaker.Execute(func() (interface{}, error) {
			return f.get(ctx, url)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("fetching %s: %w", url, err)
			}
			lastErr = err
			wait := f.backoff << attempt
			f.logger.WithError(err).WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt + 1,
				"wait":    wait.String(),
			}).Warn("Fetch failed, backing off")
			if attempt < f.maxRetries {
				if err := f.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
			continue
		}

		resp := out.(*pageResponse)
		switch {
		case resp.status == http.StatusOK:
			return resp.body, nil
		case resp.status == http.StatusNotFound:
			return nil, fmt.Errorf("fetching %s: %w", url, ErrNotFound)
		case resp.status == http.StatusTooManyRequests:
			lastErr = &StatusError{URL: url, StatusCode: resp.status}
			f.logger.WithFields(logrus.Fields{
				"url":         url,
				"retry_after": resp.retryAfter.String(),
				"attempt":     attempt + 1,
			}).Warn("⚠️  Rate limit exceeded, pausing")
			if attempt < f.maxRetries {
				if err := f.sleep(ctx, resp.retryAfter); err != nil {
					return nil, err
				}
			}
		default:
			return nil, &StatusError{URL: url, StatusCode: resp.status}
		}
	}
	return nil, fmt.Errorf("fetching %s: giving up after %d attempts: %w", url, f.maxRetries+1, lastErr)
}

// get returns an error only for failures that should count against the
// breaker: transport errors and 5xx responses.
func (f *HTTPFetcher) get(ctx context.Context, url string) (*pageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	out := &pageResponse{status: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		out.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return out, nil
	}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}

	out.body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return out, nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	} else {
		return defaultRetryAfter
	}

	if d < 0 {
		return 0
	}
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
