// Package db wraps the SQLite connection used to store loaded tables. It
// keeps the SQL surface narrow — connect, script execution, transactions —
// so the rest of the engine never touches database/sql directly.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Client wraps the database connection.
type Client struct {
	db   *sql.DB
	path string
}

// Connect opens (creating if necessary) the SQLite database file at path
// and enables foreign key enforcement, which SQLite otherwise leaves off
// by default.
func Connect(ctx context.Context, path string) (*Client, error) {
	dsn := path
	if path != ":memory:" {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	} else {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// The persistence stage is single-threaded by design; a single
	// connection avoids SQLITE_BUSY errors from concurrent writers.
	sqlDB.SetMaxOpenConns(1)

	return &Client{db: sqlDB, path: path}, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Path returns the filesystem path the client was opened against.
func (c *Client) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// GetDB returns the underlying database connection.
func (c *Client) GetDB() *sql.DB {
	return c.db
}

// ExecScript runs one or more semicolon-separated DDL statements inside a
// single transaction. Used for CREATE TABLE / CREATE INDEX batches emitted
// by the schema generator.
func (c *Client) ExecScript(ctx context.Context, statements ...string) error {
	if len(statements) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, strings.Join(statements, "\n")); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
