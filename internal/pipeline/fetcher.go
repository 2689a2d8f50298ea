package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ppiankov/mathfoundry/internal/cache"
	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/util"
)

// DefaultAPIURL is the arXiv export API endpoint
const DefaultAPIURL = "https://export.arxiv.org/api/query"

// Retry defaults for the arXiv API
const (
	DefaultMaxAttempts    = 30
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 180 * time.Second
	backoffFactor         = 1.5
	maxFeedBytes          = 64 << 20
)

// ErrRateLimited is returned when the API keeps answering 429 after all attempts
var ErrRateLimited = errors.New("rate limited")

// fetchSleepFunc waits between attempts; tests replace it
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimiter paces requests per host
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// HostPenalizer is implemented by limiters that can pause a throttled host
type HostPenalizer interface {
	Penalize(rawURL string, d time.Duration)
}

// RobotsPolicy decides whether a URL may be fetched
type RobotsPolicy interface {
	Check(ctx context.Context, rawURL string) error
}

// FeedQuery is one arXiv export API page request
type FeedQuery struct {
	SearchQuery string
	Start       int
	MaxResults  int
	SortBy      string // lastUpdatedDate, submittedDate or relevance
	SortOrder   string // ascending or descending
	Fresh       bool   // Skip cached responses; the fresh body still refreshes the cache
}

// URL renders the query against an API base URL
func (q FeedQuery) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	params := url.Values{}
	params.Set("search_query", q.SearchQuery)
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("max_results", strconv.Itoa(q.MaxResults))
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		params.Set("sortOrder", q.SortOrder)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// Fetcher downloads Atom feed pages from the arXiv export API
type Fetcher struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	limiter        RateLimiter
	robots         RobotsPolicy
	cache          cache.Cache
	cacheTTL       time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithBaseURL sets the API endpoint (for testing)
func WithBaseURL(base string) FetcherOption {
	return func(f *Fetcher) { f.baseURL = base }
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = hc }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithLimiter paces requests through a per-host limiter
func WithLimiter(l RateLimiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRobots checks robots.txt before each uncached request
func WithRobots(r RobotsPolicy) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

// WithCache caches response bodies by request URL
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithRetry sets the attempt count and backoff bounds
func WithRetry(attempts int, initial, ceiling time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.maxAttempts = attempts
		}
		if initial > 0 {
			f.initialBackoff = initial
		}
		if ceiling > 0 {
			f.maxBackoff = ceiling
		}
	}
}

// NewFetcher creates a fetcher with arXiv defaults
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		baseURL:        DefaultAPIURL,
		userAgent:      model.DefaultConfig().Arxiv.UserAgent,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFetcherFromConfig wires HTTP, proxy, retry, robots and cache settings from config.
// Extra options are applied last.
func NewFetcherFromConfig(cfg *model.Config, extra ...FetcherOption) *Fetcher {
	client := util.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	opts := []FetcherOption{
		WithHTTPClient(client),
		WithBaseURL(cfg.Arxiv.APIURL),
		WithUserAgent(cfg.Arxiv.UserAgent),
		WithRetry(cfg.HTTP.MaxAttempts, cfg.HTTP.InitialBackoff, cfg.HTTP.MaxBackoff),
	}
	if cfg.Arxiv.RespectRobots {
		opts = append(opts, WithRobots(util.NewRobotsChecker(cfg.Arxiv.UserAgent, client)))
	}
	if cfg.Cache.Enabled {
		layered := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.CacheDir(), cfg.Cache.DiskTTL)
		opts = append(opts, WithCache(layered, cfg.Cache.DiskTTL))
	}
	return NewFetcher(append(opts, extra...)...)
}

// FetchFeed returns the raw Atom XML for a query page
func (f *Fetcher) FetchFeed(ctx context.Context, q FeedQuery) ([]byte, error) {
	rawURL, err := q.URL(f.baseURL)
	if err != nil {
		return nil, err
	}
	return f.fetch(ctx, rawURL, !q.Fresh)
}

// Fetch GETs rawURL, retrying 429 and 5xx responses with capped exponential backoff
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.fetch(ctx, rawURL, true)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, readCache bool) ([]byte, error) {
	key := cache.Key(cache.KindFeed, rawURL)
	if f.cache != nil && readCache {
		if body, ok := f.cache.Get(key); ok {
			return body, nil
		}
	}

	if f.robots != nil {
		if err := f.robots.Check(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
	}

	delay := f.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		body, err := f.get(ctx, rawURL)
		if err == nil {
			if f.cache != nil {
				_ = f.cache.Set(key, body, f.cacheTTL)
			}
			return body, nil
		}
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		if attempt == f.maxAttempts {
			break
		}
		if p, ok := f.limiter.(HostPenalizer); ok && isThrottled(err) {
			p.Penalize(rawURL, delay)
		}
		if err := fetchSleepFunc(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(time.Duration(float64(delay)*backoffFactor), f.maxBackoff)
	}

	if isThrottled(lastErr) {
		return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, f.maxAttempts)
	}
	return nil, fmt.Errorf("after %d attempts: %w", f.maxAttempts, lastErr)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/atom+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, e.status)
}

func isThrottled(err error) bool {
	var status *statusError
	return errors.As(err, &status) && status.code == http.StatusTooManyRequests
}

// isRetryableFetchError retries throttling, server errors and transport failures
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests || status.code >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
