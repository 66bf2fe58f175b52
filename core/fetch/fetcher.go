// Package fetch implements the Fetcher interface.
// It performs robots-aware HTTP GET requests with a declared user
// agent, a bounded timeout, and an outbound rate limit. Per-URL
// failures are captured on the FetchResult so a batch never aborts.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gaurav-prasanna/partspipe/core"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultUserAgent  = "PartsPipe/1.0 (https://github.com/gaurav-prasanna/partspipe)"
	defaultCacheSize  = 128
	robotsFetchBudget = 15 * time.Second
)

// Config tunes an HTTPFetcher. Zero values fall back to defaults.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	RequestsPerSec  float64
	RobotsCacheSize int
}

// HTTPFetcher fetches web pages and datasheets via HTTP, consulting
// each origin's robots.txt before the page request. Robots policies
// are cached per origin (scheme+host) in an LRU.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	robots    *lru.Cache[string, *robotstxt.RobotsData]
	logger    *zap.Logger
}

// New creates an HTTPFetcher with sensible defaults.
func New(cfg Config, logger *zap.Logger) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RobotsCacheSize <= 0 {
		cfg.RobotsCacheSize = defaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	// Only errors on non-positive size, which is guarded above.
	cache, _ := lru.New[string, *robotstxt.RobotsData](cfg.RobotsCacheSize)

	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		robots:    cache,
		logger:    logger,
	}
}

// Fetch retrieves the given URL. A robots disallow yields
// SkipReason "blocked_by_robots" without any page request; network
// and HTTP failures yield SkipReason "error: <detail>". The returned
// result always carries the normalized URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) *core.FetchResult {
	normalized := NormalizeURL(rawURL)
	res := &core.FetchResult{URL: normalized}

	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		res.SkipReason = core.SkipErrorPrefix + "invalid URL"
		return res
	}

	if IsStaticAsset(normalized) {
		res.SkipReason = core.SkipErrorPrefix + "static asset"
		return res
	}

	if !f.allowed(ctx, parsed) {
		res.SkipReason = core.SkipBlockedByRobots
		return res
	}

	if err := f.limiter.Wait(ctx); err != nil {
		res.SkipReason = core.SkipErrorPrefix + err.Error()
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalized, nil)
	if err != nil {
		res.SkipReason = core.SkipErrorPrefix + err.Error()
		return res
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf")

	resp, err := f.client.Do(req)
	if err != nil {
		res.SkipReason = core.SkipErrorPrefix + err.Error()
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.SkipReason = fmt.Sprintf("%sunexpected status %d", core.SkipErrorPrefix, resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.SkipReason = core.SkipErrorPrefix + err.Error()
		return res
	}

	res.Body = body
	res.ContentType = resp.Header.Get("Content-Type")
	return res
}

// allowed checks the origin's robots policy for the effective user
// agent. A missing or unreadable robots.txt means "allow all": this
// is a conservative-availability choice, not a security control.
func (f *HTTPFetcher) allowed(ctx context.Context, u *url.URL) bool {
	origin := Origin(u)

	data, ok := f.robots.Get(origin)
	if !ok {
		data = f.fetchRobots(ctx, origin)
		f.robots.Add(origin, data)
	}
	if data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	// Robots patterns can match query strings (e.g. "/*?session"),
	// so the tested path must carry them.
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(f.userAgent).Test(path)
}

// fetchRobots retrieves and parses <origin>/robots.txt. Any failure
// returns nil, which callers treat as allow-all.
func (f *HTTPFetcher) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsCtx, cancel := context.WithTimeout(ctx, robotsFetchBudget)
	defer cancel()

	if err := f.limiter.Wait(robotsCtx); err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(robotsCtx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("robots.txt unreachable, allowing all", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		f.logger.Debug("robots.txt malformed, allowing all", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return data
}
