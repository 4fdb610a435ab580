// Package tor routes a crawl through the Tor network.
//
// EmbeddedTor starts a Tor daemon with tornago and exposes its SOCKS5 port
// as a proxy URL for the fetcher. CheckProxy verifies that a SOCKS5 proxy
// answers before a crawl depends on it, and OnionSeeds validates .onion
// seeds, which can only be reached through Tor.
package tor
