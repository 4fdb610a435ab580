// Package main provides the entry point for the flexible CLI.
//
// flexible crawls web sites starting from one or more seed URLs. It follows
// links within a whitelist of hosts, throttles requests, and reports what it
// found when the queue runs dry.
//
// Usage:
//
//	flexible crawl https://example.com
//	flexible crawl --queue sqlite --resume --record https://example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
