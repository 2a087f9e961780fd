// Package fetch retrieves target pages over HTTP with the network guard
// applied to the initial URL and every redirect hop. Bodies are size-capped
// and successful pages can be served from a short-lived cache.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

// Validator screens URLs before and during a fetch. *netguard.Guard is the
// production implementation.
type Validator interface {
	ValidateURL(ctx context.Context, rawURL string) (*url.URL, error)
	CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error
}

// PageCache stores fetched pages keyed by URL hash. The Redis cache
// satisfies it; a nil cache disables caching entirely.
type PageCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Page is the outcome of a successful fetch.
type Page struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"finalUrl"`
	StatusCode int       `json:"statusCode"`
	HTML       string    `json:"html"`
	FetchedAt  time.Time `json:"fetchedAt"`
	FromCache  bool      `json:"-"`
}

// Config carries the fetcher knobs. Zero values fall back to the package
// defaults below.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRedirects int
	UserAgent    string
	CacheTTL     time.Duration
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 2 << 20
	defaultMaxRedirects = 5
	defaultUserAgent    = "Mozilla/5.0 (compatible; aivis/1.0; +https://github.com/turtacn/aivis)"

	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.9"
)

// Fetcher performs guarded page retrieval.
type Fetcher struct {
	client   *http.Client
	guard    Validator
	cache    PageCache
	cacheTTL time.Duration
	cfg      Config
	log      logging.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithCache puts a page cache in front of the network.
func WithCache(c PageCache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithTransport replaces the HTTP transport, primarily for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.client.Transport = rt }
}

// New builds a Fetcher that validates every hop through guard.
func New(cfg Config, guard Validator, log logging.Logger, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: guard.CheckRedirect(cfg.MaxRedirects),
		},
		guard:    guard,
		cacheTTL: cfg.CacheTTL,
		cfg:      cfg,
		log:      log.Named("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. The guard clears the URL first, the cache is
// consulted next, and only then does the request go out. Errors carry
// codes the callers dispatch on: SSRFBlocked, FetchTimeout, FetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if _, err := f.guard.ValidateURL(ctx, rawURL); err != nil {
		return nil, err
	}

	key := cacheKey(rawURL)
	if f.cache != nil {
		var cached Page
		ok, err := f.cache.Get(ctx, key, &cached)
		if err != nil {
			f.log.Warn("page cache read failed", logging.String("url", rawURL), logging.Err(err))
		} else if ok {
			cached.FromCache = true
			return &cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.FetchFailed("building request failed").WithCause(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.FetchFailed(fmt.Sprintf("unexpected status %d", resp.StatusCode)).
			WithDetailf("url=%s status=%s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, errors.FetchFailed("response too large").
			WithDetailf("url=%s limit=%d", rawURL, f.cfg.MaxBodyBytes)
	}

	page := &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		FetchedAt:  time.Now().UTC(),
	}
	f.log.Debug("fetched page",
		logging.String("url", rawURL),
		logging.Int("status", resp.StatusCode),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", time.Since(start)))

	if f.cache != nil && f.cacheTTL > 0 {
		if err := f.cache.Set(ctx, key, page, f.cacheTTL); err != nil {
			f.log.Warn("page cache write failed", logging.String("url", rawURL), logging.Err(err))
		}
	}
	return page, nil
}

// cacheKey derives a stable key from the URL so cache entries survive
// across processes sharing one Redis.
func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "page:" + hex.EncodeToString(sum[:16])
}

// classifyTransportError translates low-level client failures into the
// error codes the pipeline dispatches on. Guard rejections raised inside
// CheckRedirect surface through *url.Error and keep their code.
func classifyTransportError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.FetchTimeout("request deadline exceeded").WithCause(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.FetchTimeout("request timed out").WithCause(err)
	}
	return errors.FetchFailed("request failed").WithCause(err)
}
