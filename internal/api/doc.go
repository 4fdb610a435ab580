// Package api serves the control surface of a running crawl over HTTP.
//
// Routes:
//
//	GET  /api/health     liveness
//	GET  /api/status     crawler stats, plus queue counts when configured
//	POST /api/navigate   {"urls": [...]} navigate and crawl
//	POST /api/pause      pause pumping
//	POST /api/resume     resume pumping
//	POST /api/abort      abort the crawl
//	GET  /api/pages      archived pages, filtered by ?host=
//	GET  /metrics        Prometheus metrics, when configured
package api
