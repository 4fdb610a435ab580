package fetch

import "errors"

var (
	// ErrMissingContentType is returned when a response has no Content-Type header.
	ErrMissingContentType = errors.New("missing content-type")

	// ErrUnsupportedContentType is returned when a response is not an HTML document.
	ErrUnsupportedContentType = errors.New("unsupported content-type")

	// ErrBodyTooLarge is returned when a body exceeds Options.MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrUnknownEncoding is returned by New when Options.Encoding names no
	// known character encoding.
	ErrUnknownEncoding = errors.New("unknown character encoding")

	// ErrUnsupportedProxy is returned by New for a proxy URL whose scheme is
	// not http, https, socks5 or socks5h.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")
)
