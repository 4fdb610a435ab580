// Package database provides the SQLite page archive for flexible.
//
// The archive stores:
//   - fetched pages with their status, headers, title and a SHA3-256 hash
//     of the body
//   - the links each page led to
//   - one summary record per crawl run
//
// It uses modernc.org/sqlite, so the archive is a single CGO-free file
// that lives next to the SQLite queue in the XDG data directory.
package database
