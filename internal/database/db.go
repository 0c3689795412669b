// Package database opens and migrates the sqlite databases backing
// fundfolio: market data (reloadable from CSV extracts) and results
// (the durable record of runs and studies).
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// DatabaseProfile selects the pragma set a database is opened with.
type DatabaseProfile string

const (
	// ProfileResults - append-only run history, favours durability
	ProfileResults DatabaseProfile = "results"
	// ProfileStandard - balanced defaults for reloadable data
	ProfileStandard DatabaseProfile = "standard"
)

// profilePragmas are appended to the WAL + foreign-key base set.
var profilePragmas = map[DatabaseProfile][]string{
	ProfileResults:  {"synchronous(FULL)", "auto_vacuum(NONE)"},
	ProfileStandard: {"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
}

// schemaFiles maps database names to their embedded schema.
var schemaFiles = map[string]string{
	"marketdata": "marketdata_schema.sql",
	"results":    "results_schema.sql",
}

// Config holds the settings for opening a database.
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // selects the schema ("marketdata", "results")
}

// DB wraps a sqlite connection together with its identity.
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// New opens the database at cfg.Path, creating parent directories as
// needed. file: URIs (in-memory databases in tests) are used as-is.
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolving database path %q: %w", cfg.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		cfg.Path = abs
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Name, err)
	}

	// The simulator hot path reads through in-memory tables, so the pool
	// stays small; writers are the loaders and result repositories.
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pinging database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

// dsn builds the sqlite connection string for a path and profile.
func dsn(path string, profile DatabaseProfile) string {
	pragmas := append([]string{"journal_mode(WAL)"}, profilePragmas[profile]...)
	pragmas = append(pragmas, "foreign_keys(1)", "cache_size(-64000)")

	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteString("?_pragma=")
		} else {
			b.WriteString("&_pragma=")
		}
		b.WriteString(p)
	}
	return b.String()
}

// Migrate applies the embedded schema matching the database name.
// Unknown names are skipped, which lets tests open scratch databases.
func (db *DB) Migrate() error {
	schemaFile, ok := schemaFiles[db.name]
	if !ok {
		return nil
	}

	content, err := schemaFS.ReadFile("schemas/" + schemaFile)
	if err != nil {
		return fmt.Errorf("reading embedded schema %s: %w", schemaFile, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("applying schema %s to %s: %w", schemaFile, db.name, err)
		}
		return nil
	})
}

// Conn returns the underlying sql.DB for repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name.
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	return fn(tx)
}
