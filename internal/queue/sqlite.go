package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteFileName is the name of the queue database inside its directory.
const SQLiteFileName = "queue.db"

// SQLiteOptions configures SQLiteStore behavior.
type SQLiteOptions struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool

	// Fresh deletes every item left by a previous run. When false, pending
	// items are kept and items left active are re-queued, so the crawl
	// resumes where it stopped.
	Fresh bool
}

// DefaultSQLiteOptions returns options that create the database and start fresh.
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		CreateIfNotExists: true,
		EnableWAL:         true,
		Fresh:             true,
	}
}

// SQLiteStore is a Store backed by a SQLite database file.
//
// Design decision: The queue lives in its own file next to the page archive
// rather than in the archive database because:
//  1. A fresh crawl can drop the queue without touching archived pages
//  2. Queue writes are frequent and short, archive writes are large
//  3. Either one can be used without the other
type SQLiteStore struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// OpenSQLite opens or creates the queue database in dbDir.
func OpenSQLite(ctx context.Context, dbDir string, opts SQLiteOptions) (*SQLiteStore, error) {
	dbPath := filepath.Join(dbDir, SQLiteFileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("queue database not found at %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	// A single connection serializes Get, so no item is handed out twice.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.init(ctx, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context, opts SQLiteOptions) error {
	if opts.EnableWAL {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS queue_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_items(status, id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create queue tables: %w", err)
	}

	if opts.Fresh {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM queue_items"); err != nil {
			return fmt.Errorf("failed to reset queue: %w", err)
		}
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET status = 'pending', updated_at = CURRENT_TIMESTAMP WHERE status = 'active'`,
	); err != nil {
		return fmt.Errorf("failed to re-queue active items: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add inserts rawURL as a pending item. Known URLs are ignored.
func (s *SQLiteStore) Add(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_items (url) VALUES (?) ON CONFLICT(url) DO NOTHING`, rawURL)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", rawURL, err)
	}
	return nil
}

// Get claims the oldest pending row in a single statement.
func (s *SQLiteStore) Get(ctx context.Context) (*Item, error) {
	query := `
	UPDATE queue_items
	SET status = 'active', updated_at = CURRENT_TIMESTAMP
	WHERE id = (
		SELECT id FROM queue_items WHERE status = 'pending' ORDER BY id LIMIT 1
	)
	RETURNING id, url
	`

	var (
		id  int64
		url string
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&id, &url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next item: %w", err)
	}

	return &Item{
		ID:     strconv.FormatInt(id, 10),
		URL:    url,
		Status: StatusActive,
	}, nil
}

// End marks the item's row ended and stores the error message.
func (s *SQLiteStore) End(ctx context.Context, item *Item, cause error) (*Item, error) {
	if item == nil {
		return nil, ErrNilItem
	}
	id, err := strconv.ParseInt(item.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: id %q", ErrUnknownItem, item.ID)
	}

	msg := errorText(cause)
	res, err := s.db.ExecContext(ctx, `
	UPDATE queue_items
	SET status = 'ended', error = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND status = 'active'
	`, msg, id)
	if err != nil {
		return nil, fmt.Errorf("failed to end item %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to end item %s: %w", item.ID, err)
	}
	if n == 0 {
		return nil, ErrUnknownItem
	}

	return &Item{
		ID:     item.ID,
		URL:    item.URL,
		Status: StatusEnded,
		Error:  msg,
	}, nil
}

// Stats counts rows per status.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT status, COUNT(*), COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0)
	FROM queue_items
	GROUP BY status
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var (
			status        string
			count, failed int
		)
		if err := rows.Scan(&status, &count, &failed); err != nil {
			return Stats{}, fmt.Errorf("failed to scan counts: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			st.Pending = count
		case StatusActive:
			st.Active = count
		case StatusEnded:
			st.Ended = count
			st.Failed = failed
		}
	}
	return st, rows.Err()
}

// Failures returns the ended items that carry an error, oldest first.
func (s *SQLiteStore) Failures(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, url, error FROM queue_items
	WHERE status = 'ended' AND error != ''
	ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			id   int64
			item Item
		)
		if err := rows.Scan(&id, &item.URL, &item.Error); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		item.ID = strconv.FormatInt(id, 10)
		item.Status = StatusEnded
		items = append(items, item)
	}
	return items, rows.Err()
}
