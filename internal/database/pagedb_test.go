package database

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *PageDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, FileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("expected path %s, got %s", dbPath, db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "missing")
		_, err := Open(dbDir, Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if _, err := db.InsertPage(t.Context(), &PageRecord{URL: "http://example.com", Host: "example.com"}); err != nil {
			t.Fatalf("failed to insert page: %v", err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		page, err := db.GetPage(t.Context(), "http://example.com")
		if err != nil {
			t.Fatalf("failed to get page: %v", err)
		}
		if page == nil {
			t.Error("expected page to survive reopening")
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true")
	}
}

func TestHashBody(t *testing.T) {
	t.Parallel()

	// SHA3-256 of the empty input
	want := "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := HashBody(nil); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if HashBody([]byte("a")) == HashBody([]byte("b")) {
		t.Error("expected different bodies to hash differently")
	}
}

func TestInsertAndGetPage(t *testing.T) {
	t.Parallel()

	t.Run("insert and retrieve record", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		record := &PageRecord{
			URL:         "http://example.com/about",
			Host:        "example.com",
			StatusCode:  http.StatusOK,
			ContentType: "text/html",
			Title:       "About",
			Hash:        HashBody([]byte("<html></html>")),
			Size:        13,
			Headers:     map[string][]string{"Server": {"nginx"}},
		}

		if _, err := db.InsertPage(t.Context(), record); err != nil {
			t.Fatalf("failed to insert page: %v", err)
		}

		got, err := db.GetPage(t.Context(), record.URL)
		if err != nil {
			t.Fatalf("failed to get page: %v", err)
		}
		if got == nil {
			t.Fatal("expected page, got nil")
		}
		if got.Title != "About" || got.StatusCode != http.StatusOK || got.Size != 13 {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.Hash != record.Hash {
			t.Errorf("expected hash %s, got %s", record.Hash, got.Hash)
		}
		if got.Headers["Server"][0] != "nginx" {
			t.Errorf("expected Server header nginx, got %v", got.Headers)
		}
		if got.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
	})

	t.Run("upsert updates existing record", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := t.Context()

		if _, err := db.InsertPage(ctx, &PageRecord{URL: "http://example.com", Host: "example.com", Title: "Old"}); err != nil {
			t.Fatalf("failed to insert page: %v", err)
		}
		if _, err := db.InsertPage(ctx, &PageRecord{URL: "http://example.com", Host: "example.com", Title: "New", StatusCode: http.StatusNotFound}); err != nil {
			t.Fatalf("failed to update page: %v", err)
		}

		got, err := db.GetPage(ctx, "http://example.com")
		if err != nil {
			t.Fatalf("failed to get page: %v", err)
		}
		if got.Title != "New" || got.StatusCode != http.StatusNotFound {
			t.Errorf("expected updated record, got %+v", got)
		}

		count, err := db.CountPages(ctx)
		if err != nil {
			t.Fatalf("failed to count pages: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 page, got %d", count)
		}
	})

	t.Run("returns nil for non-existent record", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		got, err := db.GetPage(t.Context(), "http://nowhere.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestListPages(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()
	for _, r := range []PageRecord{
		{URL: "http://a.example/1", Host: "a.example"},
		{URL: "http://b.example/1", Host: "b.example"},
		{URL: "http://a.example/2", Host: "a.example"},
	} {
		if _, err := db.InsertPage(ctx, &r); err != nil {
			t.Fatalf("failed to insert page: %v", err)
		}
	}

	all, err := db.ListPages(ctx, "")
	if err != nil {
		t.Fatalf("failed to list pages: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(all))
	}
	if all[0].URL != "http://a.example/1" {
		t.Errorf("expected insertion order, got %s first", all[0].URL)
	}

	hostA, err := db.ListPages(ctx, "a.example")
	if err != nil {
		t.Fatalf("failed to list pages: %v", err)
	}
	var urls []string
	for _, p := range hostA {
		urls = append(urls, p.URL)
	}
	if !slices.Equal(urls, []string{"http://a.example/1", "http://a.example/2"}) {
		t.Errorf("unexpected pages for a.example: %v", urls)
	}
}

func TestHasRecentPage(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()
	if _, err := db.InsertPage(ctx, &PageRecord{URL: "http://example.com", Host: "example.com"}); err != nil {
		t.Fatalf("failed to insert page: %v", err)
	}

	t.Run("returns true for recent page", func(t *testing.T) {
		recent, err := db.HasRecentPage(ctx, "http://example.com", time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !recent {
			t.Error("expected page to be recent")
		}
	})

	t.Run("returns false for non-existent URL", func(t *testing.T) {
		recent, err := db.HasRecentPage(ctx, "http://other.example", time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if recent {
			t.Error("expected unknown URL not to be recent")
		}
	})
}

func TestLinks(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	pairs := [][2]string{
		{"http://example.com", "http://example.com/a"},
		{"http://example.com", "http://example.com/b"},
		{"http://example.com/a", "http://example.com/b"},
		{"http://example.com", "http://example.com/a"}, // duplicate
	}
	for _, p := range pairs {
		if err := db.InsertLink(ctx, p[0], p[1]); err != nil {
			t.Fatalf("failed to insert link: %v", err)
		}
	}

	t.Run("query by source", func(t *testing.T) {
		links, err := db.QueryLinks(ctx, "http://example.com", "")
		if err != nil {
			t.Fatalf("failed to query links: %v", err)
		}
		if len(links) != 2 {
			t.Fatalf("expected 2 links, got %d", len(links))
		}
		if links[0].ToURL != "http://example.com/a" || links[1].ToURL != "http://example.com/b" {
			t.Errorf("unexpected links: %+v", links)
		}
	})

	t.Run("query by target", func(t *testing.T) {
		links, err := db.QueryLinks(ctx, "", "http://example.com/b")
		if err != nil {
			t.Fatalf("failed to query links: %v", err)
		}
		if len(links) != 2 {
			t.Errorf("expected 2 inbound links, got %d", len(links))
		}
	})
}

func TestRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := &RunRecord{
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Seeds:      []string{"http://example.com"},
		Summary:    json.RawMessage(`{"documents":3}`),
	}
	second := &RunRecord{
		StartedAt:  started.Add(time.Hour),
		FinishedAt: started.Add(2 * time.Hour),
		Seeds:      []string{"http://example.org"},
	}
	for _, run := range []*RunRecord{first, second} {
		if _, err := db.SaveRun(ctx, run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Seeds[0] != "http://example.org" {
		t.Errorf("expected most recent run first, got %v", runs[0].Seeds)
	}
	if string(runs[0].Summary) != "{}" {
		t.Errorf("expected empty summary object, got %s", runs[0].Summary)
	}
	if string(runs[1].Summary) != `{"documents":3}` {
		t.Errorf("expected stored summary, got %s", runs[1].Summary)
	}
	if !runs[1].StartedAt.Equal(started) {
		t.Errorf("expected start %v, got %v", started, runs[1].StartedAt)
	}
}
