package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// EncodingAuto asks the fetcher to detect the character encoding from the
// Content-Type header and <meta> tags.
const EncodingAuto = "auto"

// Auth holds request credentials. BearerToken wins over Username/Password.
type Auth struct {
	Username    string
	Password    string
	BearerToken string
}

func (a Auth) empty() bool {
	return a.Username == "" && a.Password == "" && a.BearerToken == ""
}

// Pool sizes the idle connection pool shared by all fetches.
type Pool struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Options configures an HTTPFetcher. The zero value is usable; see
// DefaultOptions for the values the CLI starts from.
type Options struct {
	// UserAgent is sent on every request unless Headers sets one.
	UserAgent string

	// Headers are added to every request, including redirected ones.
	Headers map[string]string

	// Encoding names the character encoding of response bodies, as accepted
	// by the WHATWG encoding index ("shift_jis", "windows-1252", ...).
	// EncodingAuto detects it per response. Empty leaves bytes untouched.
	Encoding string

	// Proxy is an http, https, socks5 or socks5h proxy URL.
	Proxy string

	// Timeout bounds each request including reading the body.
	Timeout time.Duration

	// FollowRedirects enables redirects; MaxRedirects caps them. When the
	// cap is reached the last response is returned as-is.
	FollowRedirects bool
	MaxRedirects    int

	Auth Auth
	Pool Pool

	// Jar stores cookies between requests. Nil means a new jar with the
	// public suffix list, unless DisableCookies is set.
	Jar            http.CookieJar
	DisableCookies bool

	// Cookie is a raw Cookie header value added to every request.
	Cookie string

	// MaxBodySize limits the decoded body size in bytes. Zero means no limit.
	MaxBodySize int64

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// DefaultOptions returns the options a crawl starts from.
func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    10,
		Pool: Pool{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		MaxBodySize: 10 * 1024 * 1024,
	}
}

// newClient builds the http.Client described by opts.
func newClient(opts Options) (*http.Client, error) {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          opts.Pool.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.Pool.MaxIdleConnsPerHost,
		IdleConnTimeout:       opts.Pool.IdleConnTimeout,
		// Accept-Encoding is set by headerTransport and decoded in readBody.
		DisableCompression: true,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}

	if err := applyProxy(transport, opts.Proxy); err != nil {
		return nil, err
	}

	jar := opts.Jar
	if jar == nil && !opts.DisableCookies {
		var err error
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}
	if opts.DisableCookies {
		jar = nil
	}

	return &http.Client{
		Transport:     newHeaderTransport(transport, opts),
		Timeout:       opts.Timeout,
		Jar:           jar,
		CheckRedirect: redirectPolicy(opts.FollowRedirects, opts.MaxRedirects),
	}, nil
}

// applyProxy routes transport through rawProxy. http(s) proxies use the
// transport's CONNECT support; socks5 proxies replace the dialer.
func applyProxy(transport *http.Transport, rawProxy string) error {
	rawProxy = strings.TrimSpace(rawProxy)
	if rawProxy == "" {
		return nil
	}

	u, err := url.Parse(rawProxy)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("create socks5 dialer: %w", err)
		}
		transport.DialContext = contextDialer(dialer)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProxy, u.Scheme)
	}
	return nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		ch := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- dialResult{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func redirectPolicy(follow bool, limit int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if !follow || len(via) > limit {
			return http.ErrUseLastResponse
		}
		return nil
	}
}

// headerTransport adds the configured headers, cookie and credentials to
// every request, so redirected requests carry them too.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
	cookie    string
	auth      Auth
}

func newHeaderTransport(base http.RoundTripper, opts Options) *headerTransport {
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return &headerTransport{
		base:      base,
		userAgent: opts.UserAgent,
		headers:   headers,
		cookie:    opts.Cookie,
		auth:      opts.Auth,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	clone.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	clone.Header.Set("Accept-Encoding", "gzip, deflate, br")

	if !t.auth.empty() {
		if t.auth.BearerToken != "" {
			clone.Header.Set("Authorization", "Bearer "+t.auth.BearerToken)
		} else {
			clone.SetBasicAuth(t.auth.Username, t.auth.Password)
		}
	}

	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	return t.base.RoundTrip(clone)
}
