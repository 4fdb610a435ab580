// Package report writes the end-of-crawl summary.
//
// A Tracker subscribes to a crawler's events and, once the crawl is over,
// builds a Summary from them, the crawler's stats and the queue store.
// Writers render the summary:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for tool integration
//   - MarkdownWriter: Markdown for sharing, with a chart of error kinds
//
// Writers implement the Writer interface, so they can be composed with
// MultiWriter.
package report
