package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/liujianglc/flexible/internal/queue"
)

// runTask processes one item on a worker slot, then pumps again before
// giving the slot back, so the crawl cannot be seen as drained while the
// links this item added are still unstaged.
func (c *Crawler) runTask(item *queue.Item) {
	c.process(item)
	c.Crawl()

	c.mu.Lock()
	c.pool.release()
	c.dispatchLocked()
	done := c.completeLocked()
	c.mu.Unlock()

	if done {
		c.finish()
	}
}

// process runs the steps for one item in order: wait, fetch, navigate the
// discovered links, end the item in the store, then either report the
// fetch error or pass the document through the middleware.
func (c *Crawler) process(item *queue.Item) {
	ctx := c.ctx
	logger := c.logger.With(slog.String("url", item.URL), slog.String("id", item.ID))
	logger.Debug("processing item")

	if err := c.throttle(ctx); err != nil {
		c.finishItem(ctx, item, err, logger)
		return
	}

	result, fetchErr := c.fetcher.Fetch(ctx, item.URL)
	if fetchErr != nil {
		c.finishItem(ctx, item, fetchErr, logger)
		return
	}

	for _, location := range Discover(result.Document, result.Request) {
		if err := c.Navigate(ctx, location); err != nil {
			logger.Debug("discovered location rejected",
				slog.String("location", location),
				slog.Any("error", err))
			c.emitError(err, item)
			continue
		}
		c.navigated.Add(1)
		c.events.emit(Event{Kind: EventNavigated, URL: location, Item: item})
	}

	ended := c.finishItem(ctx, item, nil, logger)

	env := &Context{Crawler: c, Item: ended, Result: result}
	if err := c.middleware.Run(ctx, env, c.emitDocument); err != nil {
		logger.Warn("middleware stopped document", slog.Any("error", err))
		c.emitError(&ItemError{Item: ended, Err: err}, ended)
	}
}

// finishItem ends item in the store. A non-nil cause is wrapped with the
// item, recorded by the store and emitted. It returns the ended item, or item
// itself when the store could not end it.
func (c *Crawler) finishItem(ctx context.Context, item *queue.Item, cause error, logger *slog.Logger) *queue.Item {
	var itemErr error
	if cause != nil {
		itemErr = &ItemError{Item: item, Err: cause}
	}

	ended, err := c.store.End(ctx, item, itemErr)
	if err != nil {
		logger.Error("failed to end item", slog.Any("error", err))
		c.emitError(&StoreError{Op: "end", Err: err}, item)
		ended = item
	}

	if itemErr != nil {
		logger.Warn("fetch failed", slog.Any("error", cause))
		c.emitError(itemErr, ended)
	}
	return ended
}

func (c *Crawler) emitDocument(_ context.Context, env *Context) error {
	c.documents.Add(1)
	c.events.emit(Event{Kind: EventDocument, Item: env.Item, Result: env.Result})
	return nil
}

// throttle waits the fetch interval and then for the rate limiter.
func (c *Crawler) throttle(ctx context.Context) error {
	if c.interval > 0 {
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if c.limiter != nil {
		return c.limiter.Wait(ctx)
	}
	return nil
}
