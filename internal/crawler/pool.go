package crawler

import (
	"golang.org/x/sync/semaphore"

	"github.com/liujianglc/flexible/internal/queue"
)

// pool holds items waiting for a worker and counts the running ones.
// It has no lock of its own; every method is called with Crawler.mu held.
//
// Design decision: Slots are taken with TryAcquire instead of a fixed set
// of worker goroutines because:
//  1. A task goroutine exists only while an item is being processed
//  2. Abort can drop pending items without draining a channel
//  3. The staging ceiling is just the length of pending
type pool struct {
	// slots limits running tasks to the concurrency ceiling.
	slots *semaphore.Weighted

	// pending are items submitted by the pump that have no slot yet,
	// oldest first.
	pending []*queue.Item

	// active is the number of tasks holding a slot.
	active int
}

func newPool(concurrency int) *pool {
	return &pool{slots: semaphore.NewWeighted(int64(concurrency))}
}

func (p *pool) submit(item *queue.Item) {
	p.pending = append(p.pending, item)
}

// next hands out the oldest pending item if a worker slot is free.
func (p *pool) next() (*queue.Item, bool) {
	if len(p.pending) == 0 || !p.slots.TryAcquire(1) {
		return nil, false
	}
	item := p.pending[0]
	p.pending[0] = nil
	p.pending = p.pending[1:]
	p.active++
	return item, true
}

// release frees the slot of a finished task.
func (p *pool) release() {
	p.active--
	p.slots.Release(1)
}

// clear drops every pending item and returns them.
func (p *pool) clear() []*queue.Item {
	dropped := p.pending
	p.pending = nil
	return dropped
}

func (p *pool) drained() bool {
	return p.active == 0 && len(p.pending) == 0
}
