// Package pipeline runs an ordered chain of handlers over a value.
//
// Each handler receives the value and a continuation. Calling the
// continuation passes control to the next handler; returning without
// calling it, or returning an error, ends the chain. The chain is folded
// once per Run, with the caller's final continuation at its end.
//
// The crawler uses Pipeline[*crawler.Context] for its document middleware;
// the package itself knows nothing about crawling.
package pipeline
