package crawler

import (
	"context"

	"github.com/liujianglc/flexible/internal/fetch"
	"github.com/liujianglc/flexible/internal/pipeline"
	"github.com/liujianglc/flexible/internal/queue"
)

// Context is what middleware receives for each fetched document.
type Context struct {
	// Crawler is the crawler that fetched the document. Middleware may call
	// its control methods, such as Navigate or Abort.
	Crawler *Crawler

	// Item is the queue item the document was fetched for. It has already
	// been ended in the store.
	Item *queue.Item

	// Result is the fetched document.
	Result *fetch.Result
}

// Middleware is a document handler. Handlers run in the order they were
// added with Use; one that returns an error, or does not call next, stops
// the document from reaching the handlers after it and the document event.
type Middleware = pipeline.Handler[*Context]

// Next continues a middleware chain.
type Next = pipeline.Next[*Context]

// MiddlewareFunc adapts fn to a named Middleware.
func MiddlewareFunc(name string, fn func(ctx context.Context, c *Context, next Next) error) Middleware {
	return pipeline.Func[*Context](name, fn)
}
