package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/database"
)

// PageStore is the part of database.PageDB the Recorder writes to.
type PageStore interface {
	InsertPage(ctx context.Context, record *database.PageRecord) (int64, error)
	HasRecentPage(ctx context.Context, url string, d time.Duration) (bool, error)
	InsertLink(ctx context.Context, fromURL, toURL string) error
}

// Recorder archives every document that reaches it, then passes it on.
//
// Design decision: A failed write halts the document instead of being
// logged and skipped, so the error event names the page that is missing
// from the archive and later middleware never sees an unarchived page.
type Recorder struct {
	// store receives pages and links.
	store PageStore

	// skipRecent skips pages archived less than this long ago. Zero
	// archives every visit.
	skipRecent time.Duration

	logger *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSkipRecent leaves pages archived less than d ago untouched.
// It is useful when a crawl resumes over an existing archive.
func WithSkipRecent(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.skipRecent = d
	}
}

// WithRecorderLogger sets the logger. The default is slog.Default().
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store PageStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements crawler.Middleware.
func (r *Recorder) Name() string { return "recorder" }

// Handle implements crawler.Middleware. A failed write halts the document.
func (r *Recorder) Handle(ctx context.Context, env *crawler.Context, next crawler.Next) error {
	res := env.Result

	if r.skipRecent > 0 {
		recent, err := r.store.HasRecentPage(ctx, res.Request.URL, r.skipRecent)
		if err != nil {
			return err
		}
		if recent {
			r.logger.Debug("page archived recently, skipping", slog.String("url", res.Request.URL))
			return next(ctx, env)
		}
	}

	record := &database.PageRecord{
		URL:         res.Request.URL,
		Host:        res.Request.Hostname,
		StatusCode:  res.Response.StatusCode,
		ContentType: res.Response.ContentType,
		Title:       Title(env),
		Hash:        database.HashBody(res.Body),
		Size:        len(res.Body),
		Headers:     res.Response.Header,
	}
	if _, err := r.store.InsertPage(ctx, record); err != nil {
		return fmt.Errorf("archive %s: %w", res.Request.URL, err)
	}

	return next(ctx, env)
}

// LinkListener returns a listener for crawler.EventNavigated that archives
// the link from the page being processed to the navigated location.
func (r *Recorder) LinkListener(ctx context.Context) crawler.Listener {
	return func(ev crawler.Event) {
		if ev.Item == nil || ev.URL == "" {
			return
		}
		if err := r.store.InsertLink(ctx, ev.Item.URL, ev.URL); err != nil {
			r.logger.Warn("failed to archive link",
				slog.String("from", ev.Item.URL),
				slog.String("to", ev.URL),
				slog.Any("error", err))
		}
	}
}

// Title returns the trimmed text of the document's first <title>.
func Title(env *crawler.Context) string {
	if env.Result == nil || env.Result.Document == nil {
		return ""
	}
	doc := goquery.NewDocumentFromNode(env.Result.Document)
	return strings.TrimSpace(doc.Find("title").First().Text())
}
