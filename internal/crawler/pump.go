package crawler

import "log/slog"

// pump moves items from the store into the pool until the pool holds the
// staging ceiling, the store has nothing more, or the crawl stops running.
// The caller must have set c.pumping.
func (c *Crawler) pump() {
	var fatal error

	c.mu.Lock()
	for {
		c.repump = false
		if c.state != StateRunning || len(c.pool.pending) >= c.staging {
			break
		}
		c.mu.Unlock()

		item, err := c.store.Get(c.ctx)

		c.mu.Lock()
		if err != nil {
			fatal = &StoreError{Op: "get", Err: err}
			break
		}
		if item == nil {
			if c.repump {
				continue
			}
			c.exhausted = true
			c.logger.Debug("queue store is empty")
			break
		}
		if c.state.Terminal() {
			c.logger.Debug("dropping item pulled during abort", slog.String("url", item.URL))
			break
		}

		c.pool.submit(item)
		c.logger.Debug("staged item",
			slog.String("url", item.URL),
			slog.Int("pending", len(c.pool.pending)))
		c.dispatchLocked()
	}

	c.pumping = false
	if c.state == StatePaused {
		c.deferred = true
	}
	done := fatal == nil && c.completeLocked()
	c.mu.Unlock()

	if fatal != nil {
		c.fail(fatal)
		return
	}
	if done {
		c.finish()
	}
}

// dispatchLocked starts a worker for every pending item a slot is free for.
func (c *Crawler) dispatchLocked() {
	for {
		item, ok := c.pool.next()
		if !ok {
			return
		}
		go c.runTask(item)
	}
}
