package queue

import (
	"context"
	"errors"
)

// Status is the lifecycle state of an Item.
type Status string

// Item states.
const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// Item is one crawl target held by a Store.
// Callers receive items from Get and hand them back to End; they should not
// build items themselves.
type Item struct {
	// ID is assigned by the store and is unique within it.
	ID string `json:"id"`

	// URL is the absolute location to fetch.
	URL string `json:"url"`

	// Status is the state the item was in when the store returned it.
	Status Status `json:"status"`

	// Error is the message of the error the item ended with, if any.
	Error string `json:"error,omitempty"`
}

// Store is the contract between the crawler and its work queue.
//
// Design decision: Stores de-duplicate by URL rather than leaving it to the
// crawler because:
//  1. Only the store sees every URL across restarts and processes
//  2. A durable store keeps the seen set together with the queue itself
//  3. Link discovery stays a pure function with no memory
type Store interface {
	// Add enqueues rawURL. URLs already known to the store are ignored.
	Add(ctx context.Context, rawURL string) error

	// Get returns the next pending item and marks it active.
	// It returns (nil, nil) when nothing is pending.
	Get(ctx context.Context) (*Item, error)

	// End marks an active item ended and records cause, which may be nil.
	// It returns the ended item.
	End(ctx context.Context, item *Item, cause error) (*Item, error)
}

// Stats counts the items of a store per state.
type Stats struct {
	Pending int `json:"pending"`
	Active  int `json:"active"`
	Ended   int `json:"ended"`

	// Failed is the number of ended items that carry an error.
	Failed int `json:"failed"`
}

// Counter is implemented by stores that can report Stats.
type Counter interface {
	Stats(ctx context.Context) (Stats, error)
}

// FailureLister is implemented by stores that can list the items that
// ended with an error.
type FailureLister interface {
	Failures(ctx context.Context) ([]Item, error)
}

var (
	// ErrNilItem is returned by End when it is given a nil item.
	ErrNilItem = errors.New("queue: nil item")

	// ErrUnknownItem is returned by End when the item is not active in the store.
	ErrUnknownItem = errors.New("queue: item is not active")

	// ErrEmptyURL is returned by Add for an empty URL.
	ErrEmptyURL = errors.New("queue: empty url")
)

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
