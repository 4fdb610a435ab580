package fetch

import (
	"bytes"
	"compress/gzip"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/japanese"
)

const testPage = `<html><head><title>Hello</title></head><body><a href="/next">next</a></body></html>`

// newTestFetcher builds a fetcher from DefaultOptions with modify applied.
func newTestFetcher(t *testing.T, modify func(*Options)) *HTTPFetcher {
	t.Helper()

	opts := DefaultOptions()
	if modify != nil {
		modify(&opts)
	}
	f, err := New(opts)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

// findTitle returns the text of the first <title> element.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

// TestFetch_HTML tests a plain HTML fetch.
func TestFetch_HTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	f := newTestFetcher(t, nil)
	result, err := f.Fetch(t.Context(), server.URL+"/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Response.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", result.Response.StatusCode)
	}
	if result.Request.Scheme != "http" {
		t.Errorf("expected scheme http, got %q", result.Request.Scheme)
	}
	if result.Request.Hostname != "127.0.0.1" {
		t.Errorf("expected hostname 127.0.0.1, got %q", result.Request.Hostname)
	}
	if !strings.HasSuffix(result.Request.URL, "/page") {
		t.Errorf("expected request url to end in /page, got %q", result.Request.URL)
	}
	if string(result.Body) != testPage {
		t.Errorf("expected body %q, got %q", testPage, result.Body)
	}
	if title := findTitle(result.Document); title != "Hello" {
		t.Errorf("expected title Hello, got %q", title)
	}
}

// TestFetch_ContentTypeChecks tests rejection of missing and non-HTML types.
func TestFetch_ContentTypeChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		want        error
	}{
		{name: "missing content type", contentType: "", want: ErrMissingContentType},
		{name: "json", contentType: "application/json", want: ErrUnsupportedContentType},
		{name: "image", contentType: "image/png", want: ErrUnsupportedContentType},
		{name: "xhtml is accepted", contentType: "application/xhtml+xml", want: nil},
		{name: "uppercase html is accepted", contentType: "TEXT/HTML; charset=UTF-8", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				// An explicit nil value keeps net/http from sniffing a type.
				w.Header()["Content-Type"] = nil
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				_, _ = w.Write([]byte(testPage))
			}))
			defer server.Close()

			_, err := newTestFetcher(t, nil).Fetch(t.Context(), server.URL)
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestFetch_NonOKStatus tests that error statuses still return documents.
func TestFetch_NonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<p>not here</p>"))
	}))
	defer server.Close()

	result, err := newTestFetcher(t, nil).Fetch(t.Context(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Response.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", result.Response.StatusCode)
	}
}

// TestFetch_RequestHeaders tests user agent, custom headers, cookie and auth.
func TestFetch_RequestHeaders(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	t.Run("basic auth", func(t *testing.T) {
		f := newTestFetcher(t, func(o *Options) {
			o.UserAgent = "flexible-test"
			o.Headers = map[string]string{"X-Custom": "yes"}
			o.Cookie = "session=abc"
			o.Auth = Auth{Username: "alice", Password: "secret"}
		})
		if _, err := f.Fetch(t.Context(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := <-headers

		if got.Get("User-Agent") != "flexible-test" {
			t.Errorf("expected user agent, got %q", got.Get("User-Agent"))
		}
		if got.Get("X-Custom") != "yes" {
			t.Errorf("expected custom header, got %q", got.Get("X-Custom"))
		}
		if !strings.Contains(got.Get("Cookie"), "session=abc") {
			t.Errorf("expected cookie, got %q", got.Get("Cookie"))
		}
		if !strings.HasPrefix(got.Get("Authorization"), "Basic ") {
			t.Errorf("expected basic auth, got %q", got.Get("Authorization"))
		}
	})

	t.Run("bearer wins over basic", func(t *testing.T) {
		f := newTestFetcher(t, func(o *Options) {
			o.Auth = Auth{Username: "alice", Password: "secret", BearerToken: "tok"}
		})
		if _, err := f.Fetch(t.Context(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := <-headers
		if got.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer auth, got %q", got.Get("Authorization"))
		}
	})
}

// TestFetch_Redirects tests the redirect policy and final request URL.
func TestFetch_Redirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tests := []struct {
		name       string
		follow     bool
		max        int
		wantSuffix string
		wantStatus int
	}{
		{name: "follows redirects", follow: true, max: 10, wantSuffix: "/final", wantStatus: http.StatusOK},
		{name: "stops at the limit", follow: true, max: 1, wantSuffix: "/middle", wantStatus: http.StatusFound},
		{name: "disabled", follow: false, max: 10, wantSuffix: "/start", wantStatus: http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newTestFetcher(t, func(o *Options) {
				o.FollowRedirects = tt.follow
				o.MaxRedirects = tt.max
			})
			// http.Redirect answers GET with a text/html body, so an
			// unfollowed redirect is still a document.
			result, err := f.Fetch(t.Context(), server.URL+"/start")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasSuffix(result.Request.URL, tt.wantSuffix) {
				t.Errorf("expected final url ending in %q, got %q", tt.wantSuffix, result.Request.URL)
			}
			if result.Response.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, result.Response.StatusCode)
			}
		})
	}
}

// TestFetch_ContentEncoding tests gzip and brotli bodies.
func TestFetch_ContentEncoding(t *testing.T) {
	t.Parallel()

	compress := map[string]func([]byte) []byte{
		"gzip": func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write(b)
			_ = zw.Close()
			return buf.Bytes()
		},
		"br": func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, _ = bw.Write(b)
			_ = bw.Close()
			return buf.Bytes()
		},
	}

	for name, fn := range compress {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			payload := fn([]byte(testPage))
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.Contains(r.Header.Get("Accept-Encoding"), name) {
					t.Errorf("expected Accept-Encoding to offer %s, got %q", name, r.Header.Get("Accept-Encoding"))
				}
				w.Header().Set("Content-Type", "text/html")
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(payload)
			}))
			defer server.Close()

			result, err := newTestFetcher(t, nil).Fetch(t.Context(), server.URL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result.Body) != testPage {
				t.Errorf("expected decoded body, got %q", result.Body)
			}
		})
	}
}

// TestFetch_CharacterEncoding tests configured and detected encodings.
func TestFetch_CharacterEncoding(t *testing.T) {
	t.Parallel()

	sjis, err := japanese.ShiftJIS.NewEncoder().String(`<html><head><title>こんにちは</title></head></html>`)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	tests := []struct {
		name        string
		encoding    string
		contentType string
	}{
		{name: "configured encoding", encoding: "shift_jis", contentType: "text/html"},
		{name: "detected from header", encoding: EncodingAuto, contentType: "text/html; charset=Shift_JIS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(sjis))
			}))
			defer server.Close()

			f := newTestFetcher(t, func(o *Options) { o.Encoding = tt.encoding })
			result, err := f.Fetch(t.Context(), server.URL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if title := findTitle(result.Document); title != "こんにちは" {
				t.Errorf("expected decoded title, got %q", title)
			}
		})
	}
}

// TestFetch_MaxBodySize tests the body size limit.
func TestFetch_MaxBodySize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("x", 4096) + "</body></html>"))
	}))
	defer server.Close()

	f := newTestFetcher(t, func(o *Options) { o.MaxBodySize = 1024 })
	if _, err := f.Fetch(t.Context(), server.URL); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", err)
	}
}

// TestFetch_TransportError tests that connection failures are returned.
func TestFetch_TransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	if _, err := newTestFetcher(t, nil).Fetch(t.Context(), addr); err == nil {
		t.Error("expected error for closed server")
	}
}

// TestNew_Options tests option validation in New.
func TestNew_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Options)
		want    error
		wantErr bool
	}{
		{name: "unknown encoding", modify: func(o *Options) { o.Encoding = "klingon" }, want: ErrUnknownEncoding, wantErr: true},
		{name: "unsupported proxy scheme", modify: func(o *Options) { o.Proxy = "ftp://proxy:21" }, want: ErrUnsupportedProxy, wantErr: true},
		{name: "http proxy", modify: func(o *Options) { o.Proxy = "http://proxy:8080" }},
		{name: "socks5 proxy", modify: func(o *Options) { o.Proxy = "socks5://127.0.0.1:9050" }},
		{name: "disabled cookies", modify: func(o *Options) { o.DisableCookies = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			tt.modify(&opts)
			f, err := New(opts)
			if tt.wantErr {
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opts.DisableCookies && f.Client().Jar != nil {
				t.Error("expected no cookie jar")
			}
			if !opts.DisableCookies && f.Client().Jar == nil {
				t.Error("expected a cookie jar")
			}
		})
	}
}

// TestIsHTML tests content type classification.
func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"text/html":                true,
		"text/html; charset=utf-8": true,
		"application/xhtml+xml":    true,
		"text/html;;broken":        true,
		"text/plain":               false,
		"application/json":         false,
		"application/xml":          false,
	}
	for ct, want := range tests {
		if got := IsHTML(ct); got != want {
			t.Errorf("IsHTML(%q) = %v, want %v", ct, got, want)
		}
	}
}
