package crawler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/liujianglc/flexible/internal/fetch"
	"github.com/liujianglc/flexible/internal/queue"
)

// EventKind identifies a crawler notification.
type EventKind int

const (
	// EventError carries an item-scoped, middleware or store error.
	EventError EventKind = iota
	// EventNavigated reports a discovered location accepted by Navigate.
	EventNavigated
	// EventDocument reports a fetched document that passed the middleware.
	EventDocument
	// EventPaused and EventResumed report lifecycle changes.
	EventPaused
	EventResumed
	// EventComplete fires exactly once, when the crawl is finished.
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventError:
		return "error"
	case EventNavigated:
		return "navigated"
	case EventDocument:
		return "document"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventComplete:
		return "complete"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one notification. Only the fields relevant to Kind are set:
// URL for navigated, Err (and Item when item-scoped) for error, Item and
// Result for document.
type Event struct {
	Kind   EventKind
	URL    string
	Err    error
	Item   *queue.Item
	Result *fetch.Result
}

// Listener receives events. Listeners run on the goroutine that emitted the
// event, which for document, navigated and most error events is a worker, so
// they must be safe for concurrent use and should return quickly.
type Listener func(Event)

// emitter is the listener registry.
type emitter struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
	logger    *slog.Logger
}

func newEmitter(logger *slog.Logger) *emitter {
	return &emitter{
		listeners: make(map[EventKind][]Listener),
		logger:    logger,
	}
}

func (e *emitter) on(kind EventKind, fn Listener) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[kind] = append(e.listeners[kind], fn)
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	listeners := e.listeners[ev.Kind]
	e.mu.RUnlock()

	for _, fn := range listeners {
		e.call(fn, ev)
	}
}

// call runs one listener. A panicking listener is logged and skipped so the
// crawl keeps going.
func (e *emitter) call(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				slog.String("event", ev.Kind.String()),
				slog.Any("panic", r))
		}
	}()
	fn(ev)
}
