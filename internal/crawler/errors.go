package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/liujianglc/flexible/internal/fetch"
	"github.com/liujianglc/flexible/internal/pipeline"
	"github.com/liujianglc/flexible/internal/queue"
)

var (
	// ErrDisallowedLocation is returned by Navigate when the location's host
	// is not in the whitelist.
	ErrDisallowedLocation = errors.New("location host is not whitelisted")

	// ErrIgnoredLocation is returned by Navigate when the location's path is
	// excluded by the ignore or follow patterns.
	ErrIgnoredLocation = errors.New("location path is filtered out")

	// ErrInvalidLocation is returned by Navigate when the location cannot be
	// parsed as a URL.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrAborted is returned by Wait and Run when the crawl ended because it
	// was aborted rather than because the queue ran dry.
	ErrAborted = errors.New("crawl aborted")

	// ErrNilStore and ErrNilFetcher are returned by New for missing dependencies.
	ErrNilStore   = errors.New("crawler requires a queue store")
	ErrNilFetcher = errors.New("crawler requires a fetcher")

	// ErrInvalidConcurrency is returned by New when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be positive")

	// ErrInvalidStagingCeiling is returned by New when the staging ceiling is not positive.
	ErrInvalidStagingCeiling = errors.New("staging ceiling must be positive")
)

// ItemError is an error scoped to one queue item, such as a failed fetch.
// It never stops the crawl.
type ItemError struct {
	Item *queue.Item
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item.URL, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure of the queue store. Failures while pulling work
// end the crawl.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("queue store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Error kinds returned by ErrorKind.
const (
	KindDisallowed  = "disallowed"
	KindIgnored     = "ignored"
	KindInvalid     = "invalid"
	KindStore       = "store"
	KindMiddleware  = "middleware"
	KindContentType = "content_type"
	KindTooLarge    = "too_large"
	KindTimeout     = "timeout"
	KindFetch       = "fetch"
	KindOther       = "other"
)

// ErrorKind classifies an error emitted by the crawler into a short label
// suitable for metrics and reports.
func ErrorKind(err error) string {
	var (
		storeErr   *StoreError
		handlerErr *pipeline.HandlerError
		itemErr    *ItemError
		netErr     net.Error
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDisallowedLocation):
		return KindDisallowed
	case errors.Is(err, ErrIgnoredLocation):
		return KindIgnored
	case errors.Is(err, ErrInvalidLocation):
		return KindInvalid
	case errors.As(err, &storeErr):
		return KindStore
	case errors.As(err, &handlerErr):
		return KindMiddleware
	case errors.Is(err, fetch.ErrUnsupportedContentType), errors.Is(err, fetch.ErrMissingContentType):
		return KindContentType
	case errors.Is(err, fetch.ErrBodyTooLarge):
		return KindTooLarge
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.As(err, &itemErr):
		return KindFetch
	default:
		return KindOther
	}
}
