package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("not found")

// DB wraps the PostgreSQL connection pool
type DB struct {
	conn             *sql.DB
	statementTimeout time.Duration
}

// Option configures a DB
type Option func(*DB)

// WithStatementTimeout bounds every statement run inside ApplyBatch's
// transaction, including time spent waiting on locks.
func WithStatementTimeout(d time.Duration) Option {
	return func(db *DB) { db.statementTimeout = d }
}

// New opens and verifies a connection to PostgreSQL
func New(connStr string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	for _, o := range opts {
		o(db)
	}
	return db, nil
}

// Conn returns the underlying sql.DB
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool
func (db *DB) Close() error {
	return db.conn.Close()
}
