package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultConcurrency is the number of fetches allowed in flight at once.
	DefaultConcurrency = 4

	// DefaultStagingCeiling is the number of queue items the pump keeps
	// pending in the worker pool. Items beyond this stay in the queue store.
	DefaultStagingCeiling = 10

	// DefaultInterval is the delay applied before every fetch. With the
	// default concurrency this yields roughly 16 requests per second.
	DefaultInterval = 250 * time.Millisecond

	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of redirects followed before the
	// last response is returned as-is.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxIdleConns is the total idle connection pool size.
	DefaultMaxIdleConns = 100

	// DefaultMaxIdleConnsPerHost is the idle pool size per host. The crawl
	// is bounded to a few hosts, so this is higher than net/http's default of 2.
	DefaultMaxIdleConnsPerHost = 10

	// DefaultIdleConnTimeout is how long an idle pooled connection is kept.
	DefaultIdleConnTimeout = 90 * time.Second

	// DefaultQueueBackend keeps the work queue in process memory.
	DefaultQueueBackend = QueueMemory

	// DefaultRedisPrefix namespaces every key written by the redis queue.
	DefaultRedisPrefix = "flexible"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "flexible"

	// DefaultUserAgent identifies flexible in HTTP requests.
	DefaultUserAgent = "flexible/1.0 (+https://github.com/liujianglc/flexible)"
)

// Queue backend names accepted by Config.QueueBackend.
const (
	QueueMemory = "memory"
	QueueSQLite = "sqlite"
	QueueRedis  = "redis"
)

// Config holds all configuration options for a crawl.
// It is populated from CLI flags and the optional config file and passed to
// the components that need it; nothing reads it from global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, QueueConfig) for simplicity. Each field maps to one
// crawl flag, and runCrawl translates it into the options of the package
// that uses it.
type Config struct {
	// Seeds are the URLs navigated to before crawling starts.
	Seeds []string

	// Domains is the hostname whitelist. When empty, it is derived from the
	// hosts of Seeds. A nil whitelist after derivation means unrestricted.
	Domains []string

	// IgnorePatterns are URL path globs ("/admin/*", "*.pdf") never navigated to.
	IgnorePatterns []string

	// FollowPatterns, when set, restrict navigation to paths matching one of them.
	FollowPatterns []string

	// Concurrency is the maximum number of simultaneously active fetches.
	Concurrency int

	// StagingCeiling is the maximum number of items pending in the worker pool.
	StagingCeiling int

	// Interval is the delay inserted before each fetch.
	Interval time.Duration

	// RateLimit is an optional global ceiling in requests per second.
	// Zero disables it and leaves Interval as the only throttle.
	RateLimit float64

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Encoding is the character encoding applied to response bodies
	// (e.g. "shift_jis", "windows-1252"). Empty means the bytes are used as-is.
	Encoding string

	// Proxy is the proxy URL. http, https and socks5 schemes are supported.
	Proxy string

	// Headers are sent with every request.
	Headers map[string]string

	// Cookie is a raw Cookie header value sent with every request.
	Cookie string

	// Username and Password enable HTTP basic authentication.
	Username string
	Password string

	// BearerToken enables bearer authentication. It takes precedence over
	// Username/Password when both are set.
	BearerToken string

	// FollowRedirects controls whether redirects are followed at all.
	FollowRedirects bool

	// MaxRedirects is the redirect limit when FollowRedirects is true.
	MaxRedirects int

	// MaxIdleConns, MaxIdleConnsPerHost and IdleConnTimeout size the
	// connection pool shared by all fetches.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// DisableCookies turns off the cookie jar.
	DisableCookies bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// QueueBackend selects the queue store: memory, sqlite or redis.
	QueueBackend string

	// RedisAddr is the host:port of the redis server for the redis backend.
	RedisAddr string

	// RedisPrefix namespaces the redis keys of the queue.
	RedisPrefix string

	// DBDir is the directory holding the SQLite queue and page archive.
	// Defaults to the XDG data directory.
	DBDir string

	// Resume keeps the existing SQLite queue instead of starting fresh, so an
	// interrupted crawl picks up where it stopped.
	Resume bool

	// Record stores every fetched document in the page archive.
	Record bool

	// SkipRecent leaves pages archived less than this long ago untouched
	// when Record is set. Zero archives every page.
	SkipRecent time.Duration

	// MaxPages aborts the crawl after this many documents. Zero means no limit.
	MaxPages int

	// ListenAddr, when set, starts the HTTP control API on that address.
	ListenAddr string

	// UseEmbeddedTor starts an embedded Tor daemon and routes all fetches
	// through its SOCKS5 proxy.
	UseEmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// JSONReport and MarkdownReport select the end-of-crawl summary format.
	// Neither set means the plain text summary.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output path for the summary; empty means stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path of the YAML config file.
	ConfigFilePath string

	// File holds the settings loaded from the config file.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Concurrency:         DefaultConcurrency,
		StagingCeiling:      DefaultStagingCeiling,
		Interval:            DefaultInterval,
		Timeout:             DefaultTimeout,
		FollowRedirects:     true,
		MaxRedirects:        DefaultMaxRedirects,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		QueueBackend:        DefaultQueueBackend,
		RedisPrefix:         DefaultRedisPrefix,
		TorStartupTimeout:   DefaultTorStartupTimeout,
		Headers:             make(map[string]string),
	}
}

// XDGDataDir returns the XDG data directory for flexible.
// On Linux: ~/.local/share/flexible
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for flexible.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first rule that is violated.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast, before a store is opened or Tor is started.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoTarget
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.StagingCeiling <= 0 {
		return ErrInvalidStagingCeiling
	}
	if c.Interval < 0 {
		return ErrInvalidInterval
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	switch c.QueueBackend {
	case QueueMemory, QueueSQLite:
	case QueueRedis:
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrUnknownQueueBackend
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseEmbeddedTor && c.Proxy != "" {
		return ErrConflictingProxy
	}
	return nil
}

// Whitelist returns the effective domain whitelist: Domains when set,
// otherwise the hostnames of Seeds. Hostnames are lower-cased and
// duplicates removed. Seeds without a scheme are read as http URLs.
func (c *Config) Whitelist() []string {
	source := c.Domains
	if len(source) == 0 {
		source = make([]string, 0, len(c.Seeds))
		for _, seed := range c.Seeds {
			if host := SeedHost(seed); host != "" {
				source = append(source, host)
			}
		}
	}
	if len(source) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(source))
	hosts := make([]string, 0, len(source))
	for _, h := range source {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

// SeedHost returns the hostname of a seed URL, or "" if it cannot be parsed.
func SeedHost(seed string) string {
	if !strings.Contains(seed, "://") {
		seed = "http://" + seed
	}
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ApplyHostConfig merges per-host settings from the config file into c.
// Values already set on c (from flags) win over the file.
func (c *Config) ApplyHostConfig(host string) {
	if c.File == nil {
		return
	}
	hc := c.File.GetHostConfig(host)

	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	for k, v := range hc.Headers {
		if _, ok := c.Headers[k]; !ok {
			c.Headers[k] = v
		}
	}
	if c.Cookie == "" {
		c.Cookie = hc.Cookie
	}
	if c.Username == "" && c.Password == "" {
		c.Username = hc.Username
		c.Password = hc.Password
	}
	if c.BearerToken == "" {
		c.BearerToken = hc.BearerToken
	}
	if c.Encoding == "" {
		c.Encoding = hc.Encoding
	}
}
