package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/liujianglc/flexible/internal/fetch"
)

// Discover returns the locations linked from doc, in document order, resolved
// against base (the request the document answers).
//
// Every element carrying an href attribute is a candidate. Hrefs are resolved
// with a small set of string rules rather than full RFC 3986 resolution:
//
//	"/"         -> the bare host ("example.com", or "example.com:8080" when
//	               the request had a port), which Navigate reads as http
//	"//x"       -> "http://x"
//	"/x"        -> "<scheme>://<host>/x"
//	"x"         -> "<scheme>://<host>/x"
//
// Schemes other than http and https are dropped, empty or unparsable hrefs
// are skipped, and the result is normalized by collapseDoubleSlash and
// trimTrailingSlash. Duplicates are kept.
//
// Design decision: We walk the parsed *html.Node tree rather than matching
// href attributes with a regular expression because:
//  1. Attribute quoting and entity escaping are already resolved by the parser
//  2. Comments and script text never produce false links
//  3. The same tree is handed to middleware, so nothing is parsed twice
func Discover(doc *html.Node, base fetch.Request) []string {
	if doc == nil {
		return nil
	}

	scheme := base.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := base.Host
	if host == "" {
		host = base.Hostname
	}

	var locations []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if href, ok := getAttr(n, "href"); ok {
				if loc, ok := resolveHref(href, scheme, host); ok {
					locations = append(locations, loc)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return locations
}

// resolveHref turns one href into an absolute location.
func resolveHref(href, scheme, host string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	if href == "/" {
		return host, true
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	var abs string
	switch {
	case u.Scheme != "":
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false
		}
		abs = href
	case strings.HasPrefix(href, "//"):
		abs = "http:" + href
	case strings.HasPrefix(href, "/"):
		abs = scheme + "://" + host + href
	default:
		abs = scheme + "://" + host + "/" + href
	}

	return trimTrailingSlash(collapseDoubleSlash(abs)), true
}

// collapseDoubleSlash replaces the first "//" that follows the first "." with
// a single slash, so "http://example.com//x" becomes "http://example.com/x".
// The scheme separator comes before the host's dot and is left alone.
func collapseDoubleSlash(s string) string {
	dot := strings.Index(s, ".")
	if dot < 0 {
		return s
	}
	i := strings.Index(s[dot:], "//")
	if i < 0 {
		return s
	}
	i += dot
	return s[:i] + s[i+1:]
}

// trimTrailingSlash removes exactly one trailing slash.
func trimTrailingSlash(s string) string {
	return strings.TrimSuffix(s, "/")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
