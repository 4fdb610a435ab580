// Package queue provides the work queue the crawler pulls from.
//
// A Store holds crawl items in three states. Add creates a pending item,
// Get hands the oldest pending item out and marks it active, and End marks
// an active item ended with an optional error. Get never blocks: when nothing
// is pending it returns a nil item and a nil error.
//
// Every store de-duplicates by URL. A URL that was ever added, whether it is
// still pending, in flight or already ended, is ignored by later Add calls.
//
// Three implementations are provided:
//   - MemoryStore keeps everything in process memory.
//   - SQLiteStore keeps items in a SQLite file so an interrupted crawl can
//     resume; items left active by a previous run are re-queued on Open.
//   - RedisStore keeps items in Redis, which lets the queue outlive the
//     process and be inspected with redis-cli. Failed items are also pushed
//     to a dead-letter list.
package queue
