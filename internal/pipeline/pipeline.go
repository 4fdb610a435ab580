package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrFrozen is returned by Use once the pipeline has been frozen.
var ErrFrozen = errors.New("pipeline: handlers cannot be added after freeze")

// Next passes control to the rest of the chain.
type Next[T any] func(ctx context.Context, env T) error

// Handler is one link of the chain.
//
// Design decision: We use an interface rather than a bare function type
// because handlers such as a recorder carry their own state, and Name gives
// every link an identity for logs and HandlerError.
type Handler[T any] interface {
	// Name identifies the handler in logs and errors.
	Name() string

	// Handle processes env. It calls next to continue the chain, and may
	// return an error to halt it.
	Handle(ctx context.Context, env T, next Next[T]) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] struct {
	name string
	fn   func(ctx context.Context, env T, next Next[T]) error
}

// Func creates a named Handler from fn.
func Func[T any](name string, fn func(ctx context.Context, env T, next Next[T]) error) HandlerFunc[T] {
	return HandlerFunc[T]{name: name, fn: fn}
}

// Name implements Handler.
func (h HandlerFunc[T]) Name() string { return h.name }

// Handle implements Handler.
func (h HandlerFunc[T]) Handle(ctx context.Context, env T, next Next[T]) error {
	return h.fn(ctx, env, next)
}

// HandlerError reports which handler halted the chain.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("middleware %s: %v", e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Pipeline is an ordered list of handlers. Handlers may be added until
// Freeze is called; Run is safe for concurrent use.
//
// Design decision: Each handler receives an explicit next continuation
// instead of returning a value to a driver loop because:
//  1. A handler can stop the chain simply by not calling next
//  2. A handler can run code after the rest of the chain, such as timing
//  3. The same type serves any env, so it is generic over T
type Pipeline[T any] struct {
	mu sync.RWMutex

	// handlers run in registration order.
	handlers []Handler[T]

	// frozen rejects further Use calls.
	frozen bool

	// logger traces handler execution at debug level.
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option[T any] func(*Pipeline[T])

// WithLogger sets the logger used to trace handler execution.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Pipeline[T]) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New[T any](opts ...Option[T]) *Pipeline[T] {
	p := &Pipeline[T]{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Use appends handlers. They run in the order they were added.
func (p *Pipeline[T]) Use(handlers ...Handler[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return ErrFrozen
	}
	p.handlers = append(p.handlers, handlers...)
	return nil
}

// Freeze makes later Use calls fail with ErrFrozen.
func (p *Pipeline[T]) Freeze() {
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (p *Pipeline[T]) Frozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen
}

// Len returns the number of handlers.
func (p *Pipeline[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}

// Names returns the handler names in execution order.
func (p *Pipeline[T]) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.handlers))
	for i, h := range p.handlers {
		names[i] = h.Name()
	}
	return names
}

// Run passes env through every handler and then to final, which may be nil.
// The first error ends the chain and is returned as a *HandlerError naming
// the handler that produced it; errors from final are returned unchanged.
//
// The context is checked before each handler rather than during one;
// handlers that block must watch ctx themselves.
func (p *Pipeline[T]) Run(ctx context.Context, env T, final Next[T]) error {
	p.mu.RLock()
	handlers := p.handlers
	p.mu.RUnlock()

	next := final
	if next == nil {
		next = func(context.Context, T) error { return nil }
	}

	for i := len(handlers) - 1; i >= 0; i-- {
		next = p.link(handlers[i], next)
	}
	return next(ctx, env)
}

func (p *Pipeline[T]) link(h Handler[T], next Next[T]) Next[T] {
	return func(ctx context.Context, env T) error {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("pipeline cancelled", "handler", h.Name(), "reason", err)
			return err
		}

		p.logger.Debug("running handler", "handler", h.Name())

		var downstream error
		err := h.Handle(ctx, env, func(ctx context.Context, env T) error {
			downstream = next(ctx, env)
			return downstream
		})
		if err == nil {
			return nil
		}
		// Errors passed up from later handlers keep their origin.
		if downstream != nil && errors.Is(err, downstream) {
			return err
		}
		var he *HandlerError
		if errors.As(err, &he) {
			return err
		}
		return &HandlerError{Handler: h.Name(), Err: err}
	}
}
