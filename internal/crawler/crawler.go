package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/liujianglc/flexible/internal/fetch"
	"github.com/liujianglc/flexible/internal/pipeline"
	"github.com/liujianglc/flexible/internal/queue"
)

// Crawler pulls locations from a queue store, fetches them with a bounded
// number of workers, feeds the links it discovers back into the store and
// passes every document through its middleware.
//
// A Crawler is used once: it starts in StateRunning, and after it reaches
// StateCompleted every control method is a no-op.
//
// Design decision: The lifecycle is an explicit State guarded by one mutex
// rather than a set of swapped callbacks because:
//  1. Crawl, Pause, Resume and Abort can branch on a single value
//  2. Stats and the control API can report the phase without extra locking
//  3. Invalid transitions are visible in one switch instead of scattered
type Crawler struct {
	// store holds every location the crawl knows about.
	store queue.Store

	// fetcher retrieves and parses one location.
	fetcher fetch.Fetcher

	// logger receives lifecycle and per-item messages.
	logger *slog.Logger

	// seeds are navigated by Run before the first Crawl.
	seeds []string

	// domains is the whitelist as configured, in order.
	domains []string

	// whitelist is domains as a set. Empty means every host is allowed.
	whitelist map[string]struct{}

	// filter applies the ignore and follow path patterns to discovered links.
	filter pathFilter

	// concurrency caps the number of tasks past fetch dispatch.
	concurrency int

	// staging caps the number of items waiting in the pool.
	staging int

	// interval is waited by every task before it fetches.
	interval time.Duration

	// limiter is an optional global request rate ceiling.
	limiter *rate.Limiter

	// middleware runs for every fetched document. It is frozen by the
	// first Crawl.
	middleware *pipeline.Pipeline[*Context]

	events *emitter

	// ctx is handed to the store and fetcher. Tasks are never preempted,
	// so it is not cancelled by Abort.
	ctx context.Context

	navigated atomic.Int64
	documents atomic.Int64
	failures  atomic.Int64

	mu        sync.Mutex
	state     State
	started   bool // Crawl has been called
	deferred  bool // Crawl was called while paused
	pumping   bool
	repump    bool // Crawl was called while a pump was running
	exhausted bool // the last Get found nothing
	aborted   bool
	err       error
	pool      *pool
	done      chan struct{}
}

// Stats is a snapshot of a crawl.
type Stats struct {
	State     State `json:"state"`
	Aborted   bool  `json:"aborted"`
	Active    int   `json:"active"`
	Pending   int   `json:"pending"`
	Navigated int64 `json:"navigated"`
	Documents int64 `json:"documents"`
	Errors    int64 `json:"errors"`
}

// New creates a Crawler that pulls work from store and fetches it with fetcher.
func New(store queue.Store, fetcher fetch.Fetcher, opts ...Option) (*Crawler, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	c := &Crawler{
		store:       store,
		fetcher:     fetcher,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
		staging:     DefaultStagingCeiling,
		interval:    DefaultInterval,
		ctx:         context.Background(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}
	if c.staging <= 0 {
		return nil, ErrInvalidStagingCeiling
	}
	if c.interval < 0 {
		c.interval = 0
	}

	c.whitelist = buildWhitelist(c.domains, c.seeds)
	c.pool = newPool(c.concurrency)
	c.events = newEmitter(c.logger)
	c.middleware = pipeline.New(pipeline.WithLogger[*Context](c.logger))
	return c, nil
}

// buildWhitelist returns the allowed hostnames, or nil when every host is
// allowed. Explicit domains win; otherwise the seeds' hosts are used.
func buildWhitelist(domains, seeds []string) map[string]struct{} {
	hosts := domains
	if len(hosts) == 0 {
		for _, seed := range seeds {
			if u, err := parseLocation(seed); err == nil {
				hosts = append(hosts, u.Hostname())
			}
		}
	}

	var whitelist map[string]struct{}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if whitelist == nil {
			whitelist = make(map[string]struct{}, len(hosts))
		}
		whitelist[h] = struct{}{}
	}
	return whitelist
}

// parseLocation parses location as an absolute http(s) URL, reading it as
// http when it has no scheme.
func parseLocation(location string) (*url.URL, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("empty location")
	}
	if !strings.Contains(location, "://") {
		location = "http://" + location
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

// Whitelist returns the allowed hostnames, or nil when unrestricted.
func (c *Crawler) Whitelist() []string {
	if c.whitelist == nil {
		return nil
	}
	hosts := make([]string, 0, len(c.whitelist))
	for h := range c.whitelist {
		hosts = append(hosts, h)
	}
	return hosts
}

// Navigate adds location to the queue store. Locations without a scheme are
// read as http. It fails with ErrInvalidLocation when location cannot be
// parsed, ErrDisallowedLocation when its host is not whitelisted and
// ErrIgnoredLocation when the path filters reject it; in those cases the
// store is not touched.
//
// Navigate does not start fetching; call Crawl for that.
func (c *Crawler) Navigate(ctx context.Context, location string) error {
	u, err := parseLocation(location)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidLocation, location, err)
	}

	if c.whitelist != nil {
		if _, ok := c.whitelist[strings.ToLower(u.Hostname())]; !ok {
			return fmt.Errorf("%w: %s", ErrDisallowedLocation, u.Redacted())
		}
	}
	if !c.filter.allows(u.Path) {
		return fmt.Errorf("%w: %s", ErrIgnoredLocation, u.Redacted())
	}

	if err := c.store.Add(ctx, u.String()); err != nil {
		return &StoreError{Op: "add", Err: err}
	}
	return nil
}

// Use appends middleware. It fails with pipeline.ErrFrozen once Crawl has
// been called.
func (c *Crawler) Use(mw ...Middleware) error {
	return c.middleware.Use(mw...)
}

// Middleware returns the names of the registered middleware in order.
func (c *Crawler) Middleware() []string {
	return c.middleware.Names()
}

// On registers fn for events of kind. Listeners registered after an event
// was emitted do not see it.
func (c *Crawler) On(kind EventKind, fn Listener) {
	c.events.on(kind, fn)
}

// Crawl pumps items from the store into the worker pool. It returns once the
// pool is staged; the work itself runs on worker goroutines.
//
// While paused the call is remembered and carried out by Resume. After Abort
// or completion it does nothing. Calling Crawl while another pump is running
// makes that pump look at the store once more instead of starting a second one.
func (c *Crawler) Crawl() {
	c.mu.Lock()
	switch c.state {
	case StatePaused:
		c.deferred = true
		c.mu.Unlock()
		return
	case StateAborted, StateCompleted:
		c.mu.Unlock()
		return
	}

	if !c.started {
		c.started = true
		c.middleware.Freeze()
		c.logger.Info("crawl started",
			slog.Int("concurrency", c.concurrency),
			slog.Int("staging", c.staging),
			slog.Duration("interval", c.interval))
	}
	if c.pumping {
		c.repump = true
		c.mu.Unlock()
		return
	}
	c.pumping = true
	c.exhausted = false
	c.mu.Unlock()

	c.pump()
}

// Pause stops new pumping until Resume. Tasks already staged keep running.
func (c *Crawler) Pause() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	c.mu.Unlock()

	c.logger.Info("crawl paused")
	c.events.emit(Event{Kind: EventPaused})
}

// Resume leaves the paused state and carries out any Crawl made meanwhile.
func (c *Crawler) Resume() {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	c.state = StateRunning
	pump := c.deferred || c.started
	c.deferred = false
	c.mu.Unlock()

	c.logger.Info("crawl resumed")
	c.events.emit(Event{Kind: EventResumed})
	if pump {
		c.Crawl()
	}
}

// Abort stops the crawl. Items staged but not started are dropped and left
// active in the store; running tasks finish. If nothing is running the
// crawl completes before Abort returns.
func (c *Crawler) Abort() {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	wasPaused := c.state == StatePaused
	c.state = StateAborted
	c.aborted = true
	c.deferred = false
	dropped := c.pool.clear()
	active := c.pool.active
	done := c.completeLocked()
	c.mu.Unlock()

	if wasPaused {
		c.logger.Info("crawl resumed")
		c.events.emit(Event{Kind: EventResumed})
	}
	c.logger.Info("crawl aborted",
		slog.Int("dropped", len(dropped)),
		slog.Int("active", active))
	if done {
		c.finish()
	}
}

// State returns the current lifecycle phase.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the crawl.
func (c *Crawler) Stats() Stats {
	c.mu.Lock()
	st := Stats{
		State:   c.state,
		Aborted: c.aborted,
		Active:  c.pool.active,
		Pending: len(c.pool.pending),
	}
	c.mu.Unlock()

	st.Navigated = c.navigated.Load()
	st.Documents = c.documents.Load()
	st.Errors = c.failures.Load()
	return st
}

// Done is closed after the complete event has been delivered.
func (c *Crawler) Done() <-chan struct{} {
	return c.done
}

// Err reports why the crawl ended: nil when the queue ran dry, the store
// failure that stopped it, or ErrAborted. It is nil while the crawl runs.
func (c *Crawler) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.err != nil:
		return c.err
	case c.aborted:
		return ErrAborted
	default:
		return nil
	}
}

// Wait blocks until the crawl completes. If ctx is cancelled first the crawl
// is aborted, in-flight tasks are waited for, and the returned error wraps
// both ErrAborted and ctx.Err().
func (c *Crawler) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		c.Abort()
		<-c.done
		return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
}

// Run navigates to every seed, starts crawling and waits for completion.
func (c *Crawler) Run(ctx context.Context) error {
	for _, seed := range c.seeds {
		if err := c.Navigate(ctx, seed); err != nil {
			return fmt.Errorf("failed to navigate to seed: %w", err)
		}
	}
	c.Crawl()
	return c.Wait(ctx)
}

// completeLocked moves the crawl to StateCompleted when the pool is drained
// and either the crawl was aborted or the store had nothing left the last
// time it was asked. It reports whether the transition happened, in which
// case the caller must call finish after unlocking.
func (c *Crawler) completeLocked() bool {
	if !c.pool.drained() {
		return false
	}
	switch c.state {
	case StateAborted:
	case StateRunning:
		if !c.started || c.pumping || !c.exhausted {
			return false
		}
	default:
		return false
	}
	c.state = StateCompleted
	return true
}

func (c *Crawler) finish() {
	c.logger.Info("crawl complete",
		slog.Int64("navigated", c.navigated.Load()),
		slog.Int64("documents", c.documents.Load()),
		slog.Int64("errors", c.failures.Load()))
	c.events.emit(Event{Kind: EventComplete})
	close(c.done)
}

// fail records a fatal store error and aborts the crawl.
func (c *Crawler) fail(err error) {
	c.logger.Error("queue store failed, stopping crawl", slog.Any("error", err))

	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.emitError(err, nil)
	c.Abort()
}

func (c *Crawler) emitError(err error, item *queue.Item) {
	c.failures.Add(1)
	c.events.emit(Event{Kind: EventError, Err: err, Item: item})
}
