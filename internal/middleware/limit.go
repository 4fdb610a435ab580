package middleware

import (
	"context"
	"sync/atomic"

	"github.com/liujianglc/flexible/internal/crawler"
)

// MaxPages aborts the crawl once max documents have passed through it.
// Documents already in flight still finish, so a few more may follow.
type MaxPages struct {
	max  int64
	seen atomic.Int64
}

// NewMaxPages creates a MaxPages limit. A max of zero or less never aborts.
func NewMaxPages(limit int) *MaxPages {
	return &MaxPages{max: int64(limit)}
}

// Name implements crawler.Middleware.
func (m *MaxPages) Name() string { return "max-pages" }

// Handle implements crawler.Middleware.
func (m *MaxPages) Handle(ctx context.Context, env *crawler.Context, next crawler.Next) error {
	n := m.seen.Add(1)
	if m.max > 0 && n == m.max {
		env.Crawler.Abort()
	}
	return next(ctx, env)
}

// Seen returns the number of documents counted so far.
func (m *MaxPages) Seen() int64 {
	return m.seen.Load()
}
