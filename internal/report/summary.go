package report

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/queue"
)

// Summary describes a finished crawl.
type Summary struct {
	Seeds      []string      `json:"seeds"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`

	// State is the final crawler state, normally completed.
	State   crawler.State `json:"state"`
	Aborted bool          `json:"aborted"`

	// Error is why the crawl stopped early, if it did.
	Error string `json:"error,omitempty"`

	Navigated int64 `json:"navigated"`
	Documents int64 `json:"documents"`
	Errors    int64 `json:"errors"`

	// DocumentsByStatus counts documents per HTTP status code.
	DocumentsByStatus map[int]int `json:"documents_by_status,omitempty"`

	// ErrorsByKind counts emitted errors per crawler.ErrorKind.
	ErrorsByKind map[string]int `json:"errors_by_kind,omitempty"`

	// Queue holds the store counts when the store implements queue.Counter.
	Queue *queue.Stats `json:"queue,omitempty"`

	// Failures lists the items that ended with an error, when the store
	// implements queue.FailureLister.
	Failures []queue.Item `json:"failures,omitempty"`
}

// Complete reports whether the crawl ran until the queue was exhausted.
func (s *Summary) Complete() bool {
	return !s.Aborted && s.Error == ""
}

// Kinds returns the keys of ErrorsByKind, most frequent first.
func (s *Summary) Kinds() []string {
	kinds := slices.Collect(maps.Keys(s.ErrorsByKind))
	slices.SortFunc(kinds, func(a, b string) int {
		if d := s.ErrorsByKind[b] - s.ErrorsByKind[a]; d != 0 {
			return d
		}
		if a < b {
			return -1
		}
		return 1
	})
	return kinds
}

// Tracker follows a crawler's events and builds its Summary.
//
// Design decision: The tracker only counts what events carry and reads the
// crawler and store once at the end, so reporting never holds the crawler's
// lock.
type Tracker struct {
	crawler *crawler.Crawler
	seeds   []string
	started time.Time

	mu       sync.Mutex
	byStatus map[int]int
	byKind   map[string]int
}

// NewTracker subscribes to c's events. Create it before the crawl starts.
func NewTracker(c *crawler.Crawler, seeds []string) *Tracker {
	t := &Tracker{
		crawler:  c,
		seeds:    seeds,
		started:  time.Now(),
		byStatus: make(map[int]int),
		byKind:   make(map[string]int),
	}

	c.On(crawler.EventDocument, func(ev crawler.Event) {
		if ev.Result == nil {
			return
		}
		t.mu.Lock()
		t.byStatus[ev.Result.Response.StatusCode]++
		t.mu.Unlock()
	})
	c.On(crawler.EventError, func(ev crawler.Event) {
		t.mu.Lock()
		t.byKind[crawler.ErrorKind(ev.Err)]++
		t.mu.Unlock()
	})
	return t
}

// Summary builds the summary. crawlErr is the error returned by the crawl,
// if any. Store counts and failures are read from store when it supports
// them; a store that cannot be read is left out rather than failing.
func (t *Tracker) Summary(ctx context.Context, store queue.Store, crawlErr error) *Summary {
	stats := t.crawler.Stats()
	finished := time.Now()

	s := &Summary{
		Seeds:      t.seeds,
		StartedAt:  t.started,
		FinishedAt: finished,
		Duration:   finished.Sub(t.started),
		State:      stats.State,
		Aborted:    stats.Aborted,
		Navigated:  stats.Navigated,
		Documents:  stats.Documents,
		Errors:     stats.Errors,
	}
	if crawlErr != nil {
		s.Error = crawlErr.Error()
	}

	t.mu.Lock()
	if len(t.byStatus) > 0 {
		s.DocumentsByStatus = maps.Clone(t.byStatus)
	}
	if len(t.byKind) > 0 {
		s.ErrorsByKind = maps.Clone(t.byKind)
	}
	t.mu.Unlock()

	if counter, ok := store.(queue.Counter); ok {
		if st, err := counter.Stats(ctx); err == nil {
			s.Queue = &st
		}
	}
	if lister, ok := store.(queue.FailureLister); ok {
		if failures, err := lister.Failures(ctx); err == nil {
			s.Failures = failures
		}
	}
	return s
}
