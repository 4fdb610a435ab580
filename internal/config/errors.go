package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be matched with
// errors.Is().
var (
	// ErrNoTarget is returned when neither a seed URL nor a domain whitelist
	// is configured. Without either the crawler has nothing to start from.
	ErrNoTarget = errors.New("no target specified: provide a seed URL")

	// ErrInvalidConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidStagingCeiling is returned when the staging ceiling is not positive.
	// A zero ceiling would keep the pump from ever submitting work.
	ErrInvalidStagingCeiling = errors.New("invalid staging ceiling: must be positive")

	// ErrInvalidInterval is returned when the fetch interval is negative.
	// Use 0 to disable the delay.
	ErrInvalidInterval = errors.New("invalid fetch interval: must be non-negative")

	// ErrInvalidRateLimit is returned when the requests-per-second ceiling is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrUnknownQueueBackend is returned when the queue backend is not one of
	// memory, sqlite or redis.
	ErrUnknownQueueBackend = errors.New("unknown queue backend: must be memory, sqlite or redis")

	// ErrMissingRedisAddr is returned when the redis backend is selected
	// without an address.
	ErrMissingRedisAddr = errors.New("redis queue backend requires --redis-addr")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when an explicit proxy is combined with
	// the embedded Tor daemon, which supplies its own SOCKS5 proxy.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")
)
