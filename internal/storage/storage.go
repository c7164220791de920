package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Storage provides persistence for page views, sessions and visitors.
type Storage struct {
	db      *sql.DB
	driver  string
	writeMu sync.Mutex
}

// Options configures the Storage instance.
type Options struct {
	// Driver is DriverSQLite or DriverPostgres. Empty means sqlite.
	Driver string
	// Path is the database file path (sqlite only).
	Path string
	// DSN is the connection string (postgres only).
	DSN string
	// MaxConnections bounds the connection pool. Defaults to 1 for
	// sqlite and 4 for postgres.
	MaxConnections int
}

// Open opens (and migrates) a database using the given options.
func Open(opts Options) (*Storage, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		db, err = sql.Open("sqlite", opts.Path+"?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL")
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		db, err = sql.Open("postgres", opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		if driver == DriverSQLite {
			maxConns = 1
		} else {
			maxConns = 4
		}
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS page_views (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TIMESTAMP,
	visitor_id TEXT,
	session_id TEXT,
	url_path TEXT NOT NULL,
	query_string TEXT,
	http_method TEXT,
	status_code INTEGER,
	referrer_domain TEXT,
	referrer_path TEXT,
	referrer_category TEXT,
	user_agent TEXT,
	browser TEXT,
	browser_version TEXT,
	os TEXT,
	os_version TEXT,
	device_type TEXT,
	is_bot INTEGER DEFAULT 0,
	country_code TEXT,
	country_name TEXT,
	region TEXT,
	city TEXT,
	edge_location TEXT,
	edge_result_type TEXT,
	bytes_sent INTEGER,
	time_taken_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_page_views_ts ON page_views(ts);
CREATE INDEX IF NOT EXISTS idx_page_views_visitor ON page_views(visitor_id);
CREATE INDEX IF NOT EXISTS idx_page_views_session ON page_views(session_id);
CREATE INDEX IF NOT EXISTS idx_page_views_path ON page_views(url_path);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	visitor_id TEXT NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP,
	duration_seconds INTEGER,
	page_views_count INTEGER DEFAULT 0,
	landing_page TEXT,
	exit_page TEXT,
	device_type TEXT,
	country_code TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_visitor ON sessions(visitor_id);
CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time);

CREATE TABLE IF NOT EXISTS visitors (
	visitor_id TEXT PRIMARY KEY,
	first_seen TIMESTAMP NOT NULL,
	last_seen TIMESTAMP NOT NULL,
	total_visits INTEGER DEFAULT 1,
	total_page_views INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_visitors_first_seen ON visitors(first_seen);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS page_views (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ,
	visitor_id VARCHAR(255),
	session_id VARCHAR(255),
	url_path VARCHAR(1024) NOT NULL,
	query_string TEXT,
	http_method VARCHAR(10),
	status_code INTEGER,
	referrer_domain VARCHAR(255),
	referrer_path VARCHAR(1024),
	referrer_category VARCHAR(20),
	user_agent TEXT,
	browser VARCHAR(100),
	browser_version VARCHAR(50),
	os VARCHAR(100),
	os_version VARCHAR(50),
	device_type VARCHAR(50),
	is_bot BOOLEAN DEFAULT FALSE,
	country_code VARCHAR(2),
	country_name VARCHAR(100),
	region VARCHAR(100),
	city VARCHAR(100),
	edge_location VARCHAR(50),
	edge_result_type VARCHAR(50),
	bytes_sent BIGINT,
	time_taken_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_page_views_ts ON page_views(ts);
CREATE INDEX IF NOT EXISTS idx_page_views_visitor ON page_views(visitor_id);
CREATE INDEX IF NOT EXISTS idx_page_views_session ON page_views(session_id);
CREATE INDEX IF NOT EXISTS idx_page_views_path ON page_views(url_path);

CREATE TABLE IF NOT EXISTS sessions (
	session_id VARCHAR(255) PRIMARY KEY,
	visitor_id VARCHAR(255) NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ,
	duration_seconds INTEGER,
	page_views_count INTEGER DEFAULT 0,
	landing_page VARCHAR(1024),
	exit_page VARCHAR(1024),
	device_type VARCHAR(50),
	country_code VARCHAR(2)
);

CREATE INDEX IF NOT EXISTS idx_sessions_visitor ON sessions(visitor_id);
CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time);

CREATE TABLE IF NOT EXISTS visitors (
	visitor_id VARCHAR(255) PRIMARY KEY,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen TIMESTAMPTZ NOT NULL,
	total_visits INTEGER DEFAULT 1,
	total_page_views INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_visitors_first_seen ON visitors(first_seen);
`

func (s *Storage) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders to $N for postgres. SQLite queries are
// returned unchanged.
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 64)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// nullString maps empty strings to SQL NULL.
func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// Driver returns the active driver name.
func (s *Storage) Driver() string {
	return s.driver
}

// Ping verifies the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats returns row counts for the three analytics tables.
func (s *Storage) Stats(ctx context.Context) (TableStats, error) {
	var stats TableStats
	queries := []struct {
		table string
		dst   *int64
	}{
		{"page_views", &stats.PageViews},
		{"sessions", &stats.Sessions},
		{"visitors", &stats.Visitors},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return stats, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return stats, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}
