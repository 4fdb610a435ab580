// Package middleware provides the document middleware the flexible CLI
// installs on a crawler:
//
//   - Recorder archives pages (title, status, headers, body hash) in a
//     database.PageDB, and its LinkListener archives discovered links
//   - Logger logs every document with the time the rest of the chain took
//   - MaxPages aborts the crawl after a number of documents
//
// Install them with Crawler.Use before crawling starts. Order matters:
// handlers run in the order they are added.
package middleware
