// Package fetch performs the single HTTP GET behind every crawl step.
//
// HTTPFetcher requests a URL with the configured headers, cookies, auth,
// proxy, timeout and redirect policy. It rejects responses whose
// Content-Type is missing or not an HTML document before reading the body,
// then streams the body through content decoding (gzip, deflate, br) and
// the configured character decoding into golang.org/x/net/html.
//
// The returned Result carries the request the response answers (after
// redirects), the response metadata, the raw body and the parsed tree.
package fetch
