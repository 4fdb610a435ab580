package crawler

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Default crawl limits.
const (
	DefaultConcurrency    = 4
	DefaultStagingCeiling = 10
	DefaultInterval       = 250 * time.Millisecond
)

// Option configures a Crawler.
type Option func(*Crawler)

// WithSeed adds a URL that Run navigates to before crawling. When no
// domains are given, the seeds' hosts become the whitelist.
func WithSeed(rawURL string) Option {
	return func(c *Crawler) {
		c.seeds = append(c.seeds, rawURL)
	}
}

// WithDomains sets the hostname whitelist explicitly.
func WithDomains(hosts ...string) Option {
	return func(c *Crawler) {
		c.domains = append(c.domains, hosts...)
	}
}

// WithConcurrency sets how many items are fetched at the same time.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		c.concurrency = n
	}
}

// WithStagingCeiling sets how many items may wait in the pool before the
// pump stops pulling from the store.
func WithStagingCeiling(n int) Option {
	return func(c *Crawler) {
		c.staging = n
	}
}

// WithInterval sets the delay each task waits before fetching.
// Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(c *Crawler) {
		c.interval = d
	}
}

// WithRateLimit caps fetches per second across all workers. It applies
// after the interval; zero or less disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Crawler) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithIgnorePatterns excludes URL paths matching any of the glob patterns
// ("/admin/*", "*.pdf", "/logout*") from navigation.
func WithIgnorePatterns(patterns ...string) Option {
	return func(c *Crawler) {
		c.filter.ignore = append(c.filter.ignore, patterns...)
	}
}

// WithFollowPatterns restricts navigation to URL paths matching at least one
// of the glob patterns. Without follow patterns every path is allowed.
func WithFollowPatterns(patterns ...string) Option {
	return func(c *Crawler) {
		c.filter.follow = append(c.filter.follow, patterns...)
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}
