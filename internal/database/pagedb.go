package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the name of the archive database inside its directory.
const FileName = "pages.db"

// PageDB stores archived pages, the links between them and crawl runs.
//
// Design decision: Pages are keyed by URL and overwritten on each visit
// rather than versioned because:
//  1. The archive answers "what does this page look like now"
//  2. HasRecentPage only needs the latest fetch time
//  3. The runs table already records when each crawl happened
type PageDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures PageDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a PageDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*PageDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer, and workers record pages concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pdb := &PageDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := pdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pdb, nil
}

// Path returns the database file path.
func (pdb *PageDB) Path() string {
	return pdb.dbPath
}

// Close closes the database connection.
func (pdb *PageDB) Close() error {
	return pdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (pdb *PageDB) createTables() error {
	schema := `
	-- Pages store the latest fetch of each URL
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		host TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		hash TEXT,
		size INTEGER DEFAULT 0,
		headers TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_timestamp ON pages(timestamp);

	-- Links record which page led to which location
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_url TEXT NOT NULL,
		to_url TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(from_url, to_url)
	);

	CREATE INDEX IF NOT EXISTS idx_links_from ON links(from_url);
	CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_url);

	-- Runs store one summary per crawl as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		seeds TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);
	`

	_, err := pdb.db.ExecContext(context.Background(), schema)
	return err
}

// HashBody returns the hex SHA3-256 digest of body.
func HashBody(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// PageRecord represents a stored page.
type PageRecord struct {
	ID          int64
	URL         string
	Host        string
	Timestamp   time.Time
	StatusCode  int
	ContentType string
	Title       string
	Hash        string
	Size        int
	Headers     map[string][]string
}

// InsertPage inserts or updates a page record.
// Uses UPSERT so a URL fetched again replaces its earlier record.
func (pdb *PageDB) InsertPage(ctx context.Context, record *PageRecord) (int64, error) {
	headersJSON, err := json.Marshal(record.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO pages (url, host, status_code, content_type, title, hash, size, headers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		host = excluded.host,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		hash = excluded.hash,
		size = excluded.size,
		headers = excluded.headers,
		timestamp = CURRENT_TIMESTAMP
	`

	result, err := pdb.db.ExecContext(ctx, query,
		record.URL,
		record.Host,
		record.StatusCode,
		record.ContentType,
		record.Title,
		record.Hash,
		record.Size,
		string(headersJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert page: %w", err)
	}

	return result.LastInsertId()
}

const pageColumns = `id, url, host, timestamp, status_code, content_type, title, hash, size, headers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*PageRecord, error) {
	var record PageRecord
	var headersJSON sql.NullString
	var timestamp string

	err := row.Scan(
		&record.ID,
		&record.URL,
		&record.Host,
		&timestamp,
		&record.StatusCode,
		&record.ContentType,
		&record.Title,
		&record.Hash,
		&record.Size,
		&headersJSON,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = parseTimestamp(timestamp)
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &record.Headers); err != nil {
			return nil, fmt.Errorf("failed to parse headers: %w", err)
		}
	}
	return &record, nil
}

// GetPage retrieves a page record by URL. It returns nil, nil when the URL
// has not been archived.
func (pdb *PageDB) GetPage(ctx context.Context, url string) (*PageRecord, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE url = ?`

	record, err := scanPage(pdb.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return record, nil
}

// ListPages returns the archived pages, oldest first. An empty host lists
// every host.
func (pdb *PageDB) ListPages(ctx context.Context, host string) ([]PageRecord, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE 1=1`
	args := make([]any, 0, 1)
	if host != "" {
		query += " AND host = ?"
		args = append(args, host)
	}
	query += " ORDER BY id"

	rows, err := pdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var results []PageRecord
	for rows.Next() {
		record, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		results = append(results, *record)
	}
	return results, rows.Err()
}

// CountPages returns the number of archived pages.
func (pdb *PageDB) CountPages(ctx context.Context) (int, error) {
	var count int
	if err := pdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// HasRecentPage checks if a URL was archived within the specified duration.
func (pdb *PageDB) HasRecentPage(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE url = ? AND timestamp > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := pdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent page: %w", err)
	}
	return count > 0, nil
}

// Link is a location discovered on a page.
type Link struct {
	ID        int64
	FromURL   string
	ToURL     string
	Timestamp time.Time
}

// InsertLink records that fromURL links to toURL. Known pairs are ignored.
func (pdb *PageDB) InsertLink(ctx context.Context, fromURL, toURL string) error {
	query := `
	INSERT INTO links (from_url, to_url) VALUES (?, ?)
	ON CONFLICT(from_url, to_url) DO NOTHING
	`
	if _, err := pdb.db.ExecContext(ctx, query, fromURL, toURL); err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// QueryLinks returns links with optional filters, in insertion order.
func (pdb *PageDB) QueryLinks(ctx context.Context, fromURL, toURL string) ([]Link, error) {
	query := `
	SELECT id, from_url, to_url, timestamp
	FROM links
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if fromURL != "" {
		query += " AND from_url = ?"
		args = append(args, fromURL)
	}
	if toURL != "" {
		query += " AND to_url = ?"
		args = append(args, toURL)
	}

	query += " ORDER BY id"

	rows, err := pdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var results []Link
	for rows.Next() {
		var link Link
		var timestamp string

		if err := rows.Scan(&link.ID, &link.FromURL, &link.ToURL, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}

		link.Timestamp = parseTimestamp(timestamp)
		results = append(results, link)
	}

	return results, rows.Err()
}

// RunRecord summarizes one crawl.
type RunRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Seeds      []string

	// Summary is the crawl summary as JSON.
	Summary json.RawMessage
}

// SaveRun stores a crawl run and returns its ID.
func (pdb *PageDB) SaveRun(ctx context.Context, run *RunRecord) (int64, error) {
	seedsJSON, err := json.Marshal(run.Seeds)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize seeds: %w", err)
	}
	summary := run.Summary
	if len(summary) == 0 {
		summary = json.RawMessage("{}")
	}

	query := `
	INSERT INTO runs (started_at, finished_at, seeds, summary_json)
	VALUES (?, ?, ?, ?)
	`

	result, err := pdb.db.ExecContext(ctx, query,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		string(seedsJSON),
		string(summary),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return result.LastInsertId()
}

// ListRuns returns stored runs, most recent first.
func (pdb *PageDB) ListRuns(ctx context.Context) ([]RunRecord, error) {
	query := `
	SELECT id, started_at, finished_at, seeds, summary_json
	FROM runs
	ORDER BY started_at DESC, id DESC
	`

	rows, err := pdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var run RunRecord
		var started, finished, seedsJSON, summary string

		if err := rows.Scan(&run.ID, &started, &finished, &seedsJSON, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
			continue // Skip malformed runs
		}
		run.Summary = json.RawMessage(summary)
		results = append(results, run)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
