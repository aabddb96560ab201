// Package store persists hikes and their observations in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/starford/hikelog/internal/apperr"
)

// Supported database/sql driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Column names and types are shared with the export format of other app
// instances; do not rename them.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS hikes (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT    NOT NULL,
	location         TEXT    NOT NULL,
	date             TEXT    NOT NULL,
	parkingAvailable INTEGER NOT NULL,
	lengthKm         REAL    NOT NULL,
	difficulty       TEXT    NOT NULL,
	description      TEXT,
	elevationGainM   INTEGER,
	rating           REAL,
	photoUri         TEXT,
	latitude         REAL,
	longitude        REAL,
	addedToCalendar  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	hikeId      INTEGER NOT NULL,
	observation TEXT    NOT NULL,
	timestamp   INTEGER NOT NULL,
	comments    TEXT,
	photoUri    TEXT,
	FOREIGN KEY (hikeId) REFERENCES hikes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_hikes_name ON hikes(name);
CREATE INDEX IF NOT EXISTS idx_observations_hikeId ON observations(hikeId);
`

// Config selects the database file and driver.
type Config struct {
	Path   string
	Driver string // DriverCGO (default) or DriverPureGo
}

// DB wraps the single shared sql.DB connection.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database and applies the schema.
// Every failure wraps apperr.ErrStorageUnavailable.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverCGO
	}
	dsn, err := buildDSN(driver, cfg.Path)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", apperr.ErrStorageUnavailable, err)
	}
	// One logical connection for the life of the process; pragmas are per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ping: %v", apperr.ErrStorageUnavailable, err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", apperr.ErrStorageUnavailable, err)
	}
	return &DB{conn: conn}, nil
}

func buildDSN(driver, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty database path", apperr.ErrStorageUnavailable)
	}
	switch driver {
	case DriverCGO:
		return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", nil
	case DriverPureGo:
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	default:
		return "", fmt.Errorf("%w: unsupported driver %q", apperr.ErrStorageUnavailable, driver)
	}
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Connector lazily opens the database on first use and hands out the same
// handle afterwards. A failed first open is not retried.
type Connector struct {
	cfg  Config
	once sync.Once
	db   *DB
	err  error
}

// NewConnector returns a Connector for cfg. Nothing is opened yet.
func NewConnector(cfg Config) *Connector {
	return &Connector{cfg: cfg}
}

// Conn returns the shared handle, opening it and ensuring the schema on the first call.
func (c *Connector) Conn(ctx context.Context) (*DB, error) {
	c.once.Do(func() {
		c.db, c.err = Open(ctx, c.cfg)
	})
	return c.db, c.err
}

// Close closes the handle if it was ever opened.
func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
