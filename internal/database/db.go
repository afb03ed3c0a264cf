// Package database provides the SQLite connection used for portfolio
// holdings and the price cache, with pragmas tuned per profile.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Profile selects the pragma set for a database.
type Profile string

const (
	// ProfileStandard balances durability and speed; used for holdings.
	ProfileStandard Profile = "standard"
	// ProfileCache favors speed; the price cache can be rebuilt from the
	// provider at any time.
	ProfileCache Profile = "cache"
)

// DB wraps a SQLite connection with its configuration.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
}

// Config holds database configuration.
type Config struct {
	Path    string
	Profile Profile
}

// New opens (creating if needed) a SQLite database at cfg.Path. "file:"
// URIs pass through untouched so tests can use in-memory databases.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	path := cfg.Path
	if !strings.HasPrefix(path, "file:") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = abs
	}

	conn, err := sql.Open("sqlite", connectionString(path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps SQLite happy under concurrent handlers.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, path: path, profile: cfg.Profile}, nil
}

// Conn exposes the raw connection for repositories.
func (d *DB) Conn() *sql.DB { return d.conn }

// Path returns the resolved database path.
func (d *DB) Path() string { return d.path }

// Close closes the connection.
func (d *DB) Close() error { return d.conn.Close() }

func connectionString(path string, profile Profile) string {
	pragmas := url.Values{}
	pragmas.Add("_pragma", "journal_mode(WAL)")
	if profile == ProfileCache {
		pragmas.Add("_pragma", "synchronous(OFF)")
	} else {
		pragmas.Add("_pragma", "synchronous(NORMAL)")
	}
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "foreign_keys(ON)")

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + pragmas.Encode()
	}
	return "file:" + path + "?" + pragmas.Encode()
}
