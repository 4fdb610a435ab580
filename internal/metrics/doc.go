// Package metrics exposes a crawl as Prometheus metrics.
//
// New subscribes a Collector to a crawler's events and registers gauges that
// read the worker pool at scrape time. RegisterQueue adds the item counts of
// a queue store that implements queue.Counter. Serve the registry with
// promhttp, as the control API does on /metrics.
package metrics
