package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Fetcher retrieves and parses one document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// Request describes the request a response answers. After redirects this
// is the final request, not the one the crawl asked for.
type Request struct {
	URL      string
	Scheme   string
	Hostname string

	// Host is Hostname plus the port when the URL carries one.
	Host string
}

// Response is the metadata of a fetched response.
type Response struct {
	StatusCode  int
	Status      string
	Header      http.Header
	ContentType string
}

// Result is a fetched and parsed document.
type Result struct {
	Request  Request
	Response Response

	// Body is the response body after content and charset decoding.
	Body []byte

	// Document is the parsed tree of Body.
	Document *html.Node
}

// HTTPFetcher is the Fetcher used by the crawl.
// It is safe for concurrent use by multiple tasks.
//
// Design decision: All request options are resolved once in New into an
// http.Client and a header-adding transport, rather than per request,
// because:
//  1. Every task shares one immutable snapshot of headers and credentials
//  2. Connection pooling and the cookie jar live in one client
//  3. Invalid options fail at startup instead of on the first fetch
type HTTPFetcher struct {
	// client carries the transport, redirect policy, jar and timeout.
	client *http.Client

	// encoding decodes bodies when set. Nil with autoDetect false means
	// bodies are parsed as they are.
	encoding encoding.Encoding

	// autoDetect sniffs the charset from the header and meta tags.
	autoDetect bool

	// maxBodySize caps the bytes read from a body. Zero means no limit.
	maxBodySize int64
}

// New builds an HTTPFetcher from opts.
func New(opts Options) (*HTTPFetcher, error) {
	f := &HTTPFetcher{maxBodySize: opts.MaxBodySize}

	switch name := strings.TrimSpace(opts.Encoding); {
	case name == "":
	case strings.EqualFold(name, EncodingAuto):
		f.autoDetect = true
	default:
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
		}
		f.encoding = enc
	}

	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	f.client = client
	return f, nil
}

// Client returns the underlying HTTP client.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch requests rawURL and parses the response into a document tree.
// Transport failures and content checks are returned as errors; non-2xx
// statuses are not errors and come back as documents like any other.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingContentType, rawURL)
	}
	if !IsHTML(contentType) {
		return nil, fmt.Errorf("%w: %q at %s", ErrUnsupportedContentType, contentType, rawURL)
	}

	body, doc, err := f.parseBody(resp, contentType)
	if err != nil {
		return nil, err
	}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	return &Result{
		Request: describe(final),
		Response: Response{
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			Header:      resp.Header.Clone(),
			ContentType: contentType,
		},
		Body:     body,
		Document: doc,
	}, nil
}

// parseBody streams the decoded body into the HTML parser while keeping a
// copy of the bytes the parser consumed.
func (f *HTTPFetcher) parseBody(resp *http.Response, contentType string) ([]byte, *html.Node, error) {
	decoded, closeFn, err := decompress(resp)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	var src io.Reader = decoded
	if f.maxBodySize > 0 {
		src = io.LimitReader(decoded, f.maxBodySize+1)
	}

	var raw bytes.Buffer
	src = io.TeeReader(src, &raw)

	switch {
	case f.encoding != nil:
		src = f.encoding.NewDecoder().Reader(src)
	case f.autoDetect:
		r, err := charset.NewReader(src, contentType)
		if err != nil {
			return nil, nil, fmt.Errorf("detect charset: %w", err)
		}
		src = r
	}

	var text bytes.Buffer
	doc, err := html.Parse(io.TeeReader(src, &text))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	// html.Parse may stop before EOF; drain so the limit check sees everything.
	if _, err := io.Copy(&text, src); err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}

	if f.maxBodySize > 0 && int64(raw.Len()) > f.maxBodySize {
		return nil, nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodySize)
	}
	return text.Bytes(), doc, nil
}

// decompress wraps resp.Body according to its Content-Encoding.
func decompress(resp *http.Response) (io.Reader, func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "br":
		return brotli.NewReader(resp.Body), noop, nil
	case "deflate":
		fl := flate.NewReader(resp.Body)
		return fl, func() { _ = fl.Close() }, nil
	default:
		return resp.Body, noop, nil
	}
}

// IsHTML reports whether contentType names an HTML document
// (text/html or application/xhtml+xml).
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	switch strings.ToLower(mediaType) {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

func describe(u *url.URL) Request {
	return Request{
		URL:      u.String(),
		Scheme:   u.Scheme,
		Hostname: u.Hostname(),
		Host:     u.Host,
	}
}
