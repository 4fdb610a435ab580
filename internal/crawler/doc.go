// Package crawler orchestrates a crawl over a queue store.
//
// # Architecture
//
// A Crawler is built from a queue.Store, which holds the locations still to
// visit, and a fetch.Fetcher, which turns a location into a parsed document.
// Between them sit three pieces:
//
//   - the pump pulls items from the store into an in-memory pool until the
//     pool holds the staging ceiling or the store is empty
//   - the pool runs at most the configured concurrency of tasks at once
//   - each task waits the fetch interval, fetches its item, navigates the
//     links discovered in the document, ends the item in the store and runs
//     the document through the middleware
//
// Every finished task calls Crawl again, which keeps the pump going. The
// crawl completes when the pool is drained and the store has nothing left.
//
// # Lifecycle
//
//	Running <-> Paused
//	Running | Paused -> Aborted -> Completed   (after in-flight tasks finish)
//	Running -> Completed                       (pool drained, store empty)
//
// Pausing stops the pump but not the tasks already staged. Aborting drops
// staged tasks that have not started and never interrupts a running fetch.
//
// # Links
//
// Discover walks the document and resolves every href with a fixed set of
// string rules; see its documentation. Navigate then applies the host
// whitelist and the optional path filters before adding the location to the
// store. Stores ignore locations they have seen before.
//
// # Usage
//
//	c, err := crawler.New(queue.NewMemoryStore(), fetcher,
//		crawler.WithSeed("http://example.com"),
//		crawler.WithConcurrency(4))
//	if err != nil {
//		return err
//	}
//	c.On(crawler.EventDocument, func(ev crawler.Event) {
//		fmt.Println(ev.Result.Request.URL)
//	})
//	err = c.Run(ctx)
package crawler
