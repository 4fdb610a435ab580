package queue

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is a Store kept in process memory.
// The zero value is not usable; create one with NewMemoryStore.
type MemoryStore struct {
	mu sync.Mutex

	// seq numbers items in the order they were added.
	seq uint64

	// pending is the FIFO queue.
	pending []*Item

	// active holds items handed out by Get, keyed by ID.
	active map[string]*Item

	// seen has every URL ever added.
	seen map[string]struct{}

	ended  int
	failed []Item
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]*Item),
		seen:   make(map[string]struct{}),
	}
}

// Add enqueues rawURL unless it was added before.
func (s *MemoryStore) Add(_ context.Context, rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[rawURL]; ok {
		return nil
	}
	s.seen[rawURL] = struct{}{}
	s.seq++
	s.pending = append(s.pending, &Item{
		ID:     strconv.FormatUint(s.seq, 10),
		URL:    rawURL,
		Status: StatusPending,
	})
	return nil
}

// Get pops the oldest pending item.
func (s *MemoryStore) Get(_ context.Context) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil, nil
	}
	item := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]

	item.Status = StatusActive
	s.active[item.ID] = item

	out := *item
	return &out, nil
}

// End marks item ended.
func (s *MemoryStore) End(_ context.Context, item *Item, cause error) (*Item, error) {
	if item == nil {
		return nil, ErrNilItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.active[item.ID]
	if !ok {
		return nil, ErrUnknownItem
	}
	delete(s.active, item.ID)

	stored.Status = StatusEnded
	stored.Error = errorText(cause)
	s.ended++
	if cause != nil {
		s.failed = append(s.failed, *stored)
	}

	out := *stored
	return &out, nil
}

// Stats reports the item counts.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Pending: len(s.pending),
		Active:  len(s.active),
		Ended:   s.ended,
		Failed:  len(s.failed),
	}, nil
}

// Failures returns the items that ended with an error, oldest first.
func (s *MemoryStore) Failures(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.failed))
	copy(out, s.failed)
	return out, nil
}
