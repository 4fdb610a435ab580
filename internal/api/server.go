package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/database"
	"github.com/liujianglc/flexible/internal/queue"
)

// Controller is the crawler control surface the API exposes.
// *crawler.Crawler implements it.
type Controller interface {
	Navigate(ctx context.Context, location string) error
	Crawl()
	Pause()
	Resume()
	Abort()
	Stats() crawler.Stats
}

// PageLister lists archived pages. *database.PageDB implements it.
type PageLister interface {
	ListPages(ctx context.Context, host string) ([]database.PageRecord, error)
}

// Server is the HTTP control API of a running crawl.
//
// Design decision: Server depends on the small Controller interface rather
// than on *crawler.Crawler so handlers can be tested against a recording
// fake, and optional parts (pages, queue counts, metrics) are only routed
// when their option is given.
type Server struct {
	// crawler receives the control calls.
	crawler Controller

	// pages backs /api/pages. Nil when the crawl does not record pages.
	pages PageLister

	// queue adds item counts to /api/status when set.
	queue queue.Counter

	// gatherer backs /metrics when set.
	gatherer prometheus.Gatherer

	logger *slog.Logger

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithPages serves the page archive on /api/pages.
func WithPages(pages PageLister) Option {
	return func(s *Server) {
		s.pages = pages
	}
}

// WithQueue adds the queue store counts to /api/status.
func WithQueue(counter queue.Counter) Option {
	return func(s *Server) {
		s.queue = counter
	}
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, c Controller, opts ...Option) *Server {
	s := &Server{
		crawler: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and for mounting elsewhere.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(l)
	}()

	s.logger.Info("control API listening", slog.String("addr", l.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the server's address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
