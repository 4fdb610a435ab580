package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/database"
	"github.com/liujianglc/flexible/internal/fetch"
	"github.com/liujianglc/flexible/internal/queue"
)

type fakeController struct {
	mu     sync.Mutex
	calls  []string
	reject map[string]error
	stats  crawler.Stats
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Navigate(_ context.Context, location string) error {
	f.record("navigate " + location)
	return f.reject[location]
}

func (f *fakeController) Crawl()  { f.record("crawl") }
func (f *fakeController) Pause()  { f.record("pause") }
func (f *fakeController) Resume() { f.record("resume") }
func (f *fakeController) Abort()  { f.record("abort") }

func (f *fakeController) Stats() crawler.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeController) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string) (*fetch.Result, error) {
	return nil, errors.New("not used")
}

type fakePages struct {
	records []database.PageRecord
	err     error
	host    string
}

func (f *fakePages) ListPages(_ context.Context, host string) ([]database.PageRecord, error) {
	f.host = host
	return f.records, f.err
}

func newTestServer(t *testing.T, c Controller, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.DiscardHandler)))
	srv := httptest.NewServer(NewServer("", c, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeController{})
	code, body := do(t, http.MethodGet, srv.URL+"/api/health", "")
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("crawler stats only", func(t *testing.T) {
		t.Parallel()

		ctrl := &fakeController{stats: crawler.Stats{State: crawler.StatePaused, Active: 2, Pending: 3, Documents: 7}}
		srv := newTestServer(t, ctrl)

		code, body := do(t, http.MethodGet, srv.URL+"/api/status", "")
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		var resp map[string]any
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp["state"] != "paused" {
			t.Errorf("expected state paused, got %v", resp["state"])
		}
		if resp["active"] != float64(2) || resp["pending"] != float64(3) || resp["documents"] != float64(7) {
			t.Errorf("unexpected stats: %v", resp)
		}
		if _, ok := resp["queue"]; ok {
			t.Error("expected no queue stats without a queue")
		}
	})

	t.Run("with queue counts", func(t *testing.T) {
		t.Parallel()

		store := queue.NewMemoryStore()
		for _, u := range []string{"http://a.test", "http://b.test"} {
			if err := store.Add(t.Context(), u); err != nil {
				t.Fatalf("failed to add: %v", err)
			}
		}
		srv := newTestServer(t, &fakeController{}, WithQueue(store))

		_, body := do(t, http.MethodGet, srv.URL+"/api/status", "")
		var resp StatusResponse
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.Queue == nil || resp.Queue.Pending != 2 {
			t.Errorf("expected 2 pending queue items, got %+v", resp.Queue)
		}
	})
}

func TestNavigate(t *testing.T) {
	t.Parallel()

	t.Run("accepts and crawls", func(t *testing.T) {
		t.Parallel()

		ctrl := &fakeController{reject: map[string]error{
			"http://evil.test": crawler.ErrDisallowedLocation,
		}}
		srv := newTestServer(t, ctrl)

		code, body := do(t, http.MethodPost, srv.URL+"/api/navigate",
			`{"urls":["http://example.com/a","http://evil.test"]}`)
		if code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", code, body)
		}

		var resp NavigateResponse
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(resp.Accepted) != 1 || resp.Accepted[0] != "http://example.com/a" {
			t.Errorf("unexpected accepted: %v", resp.Accepted)
		}
		if !strings.Contains(resp.Rejected["http://evil.test"], "not whitelisted") {
			t.Errorf("unexpected rejected: %v", resp.Rejected)
		}

		calls := ctrl.history()
		if calls[len(calls)-1] != "crawl" {
			t.Errorf("expected crawl after navigation, got %v", calls)
		}
	})

	t.Run("nothing accepted", func(t *testing.T) {
		t.Parallel()

		ctrl := &fakeController{reject: map[string]error{"::": crawler.ErrInvalidLocation}}
		srv := newTestServer(t, ctrl)

		code, _ := do(t, http.MethodPost, srv.URL+"/api/navigate", `{"urls":["::"]}`)
		if code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", code)
		}
		for _, call := range ctrl.history() {
			if call == "crawl" {
				t.Error("expected no crawl when nothing was accepted")
			}
		}
	})

	t.Run("finished crawl", func(t *testing.T) {
		t.Parallel()

		for _, state := range []crawler.State{crawler.StateAborted, crawler.StateCompleted} {
			ctrl := &fakeController{stats: crawler.Stats{State: state}}
			srv := newTestServer(t, ctrl)

			code, body := do(t, http.MethodPost, srv.URL+"/api/navigate", `{"urls":["http://example.com/a"]}`)
			if code != http.StatusConflict {
				t.Errorf("%s: expected 409, got %d", state, code)
			}
			if !strings.Contains(body, state.String()) {
				t.Errorf("%s: expected state in error, got %s", state, body)
			}
			if calls := ctrl.history(); len(calls) != 0 {
				t.Errorf("%s: expected no navigation, got %v", state, calls)
			}
		}
	})

	t.Run("bad requests", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &fakeController{})
		for _, body := range []string{`not json`, `{"urls":[]}`, `{}`} {
			if code, _ := do(t, http.MethodPost, srv.URL+"/api/navigate", body); code != http.StatusBadRequest {
				t.Errorf("body %q: expected 400, got %d", body, code)
			}
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &fakeController{})
		if code, _ := do(t, http.MethodGet, srv.URL+"/api/navigate", ""); code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", code)
		}
	})
}

func TestControl(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl)

	for _, action := range []string{"pause", "resume", "abort"} {
		code, body := do(t, http.MethodPost, srv.URL+"/api/"+action, "")
		if code != http.StatusAccepted {
			t.Errorf("%s: expected 202, got %d", action, code)
		}
		if !strings.Contains(body, `"state"`) {
			t.Errorf("%s: expected stats in body, got %s", action, body)
		}
	}

	calls := ctrl.history()
	want := []string{"pause", "resume", "abort"}
	if fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Errorf("expected calls %v, got %v", want, calls)
	}
}

func TestPages(t *testing.T) {
	t.Parallel()

	t.Run("not enabled", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &fakeController{})
		if code, _ := do(t, http.MethodGet, srv.URL+"/api/pages", ""); code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", code)
		}
	})

	t.Run("lists pages for a host", func(t *testing.T) {
		t.Parallel()

		pages := &fakePages{records: []database.PageRecord{
			{URL: "http://example.com", Host: "example.com", StatusCode: 200, Title: "Home", Hash: "abc", Size: 10},
		}}
		srv := newTestServer(t, &fakeController{}, WithPages(pages))

		code, body := do(t, http.MethodGet, srv.URL+"/api/pages?host=example.com", "")
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		if pages.host != "example.com" {
			t.Errorf("expected host filter example.com, got %q", pages.host)
		}
		var resp []PageResponse
		if err := json.Unmarshal([]byte(body), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(resp) != 1 || resp[0].Title != "Home" || resp[0].StatusCode != 200 {
			t.Errorf("unexpected pages: %+v", resp)
		}
	})

	t.Run("archive failure", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &fakeController{}, WithPages(&fakePages{err: errors.New("locked")}))
		if code, _ := do(t, http.MethodGet, srv.URL+"/api/pages", ""); code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", code)
		}
	})
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	t.Run("served when configured", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
		reg.MustRegister(counter)
		counter.Inc()

		srv := newTestServer(t, &fakeController{}, WithMetrics(reg))
		code, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		if !strings.Contains(body, "test_total 1") {
			t.Errorf("expected metric in body, got %s", body)
		}
	})

	t.Run("absent otherwise", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &fakeController{})
		if code, _ := do(t, http.MethodGet, srv.URL+"/metrics", ""); code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", code)
		}
	})
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	s := NewServer("", &fakeController{}, WithLogger(slog.New(slog.DiscardHandler)))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, l) }()

	code, _ := do(t, http.MethodGet, "http://"+l.Addr().String()+"/api/health", "")
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWithCrawler(t *testing.T) {
	t.Parallel()

	c, err := crawler.New(queue.NewMemoryStore(), nopFetcher{},
		crawler.WithDomains("example.com"),
		crawler.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("failed to create crawler: %v", err)
	}
	srv := newTestServer(t, c)

	if code, _ := do(t, http.MethodPost, srv.URL+"/api/pause", ""); code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", code)
	}
	if c.State() != crawler.StatePaused {
		t.Errorf("expected paused, got %s", c.State())
	}

	code, body := do(t, http.MethodPost, srv.URL+"/api/navigate", `{"urls":["http://other.test"]}`)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a disallowed host, got %d: %s", code, body)
	}

	if code, _ := do(t, http.MethodPost, srv.URL+"/api/abort", ""); code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", code)
	}
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("crawler did not complete after abort")
	}
}
