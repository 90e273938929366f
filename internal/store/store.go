// Package store wraps the Postgres contacts table behind typed methods.
//
// "Not found" is a normal outcome for the point lookups and is surfaced as
// ErrNotFound so callers can distinguish it from a backend failure with
// errors.Is. Every other error is a persistence failure wrapped with enough
// context to identify the failing operation.
//
// Dependency rule: store imports nothing from this module. It never imports
// api, intake, dispatch, email, or translate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by FindByEmail, FindByID, and Update when no row
// matches. Callers must treat it as a regular outcome, not a failure.
var ErrNotFound = errors.New("store: contact not found")

// Store holds the connection pool. The operation files (contacts.go,
// dispatchruns.go) attach methods to this type.
type Store struct {
	pool *sql.DB
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via Open) before calling New.
func New(pool *sql.DB) *Store {
	return &Store{pool: pool}
}

// Open opens a Postgres connection pool, tunes it, and verifies connectivity
// with a bounded ping. The caller owns the returned pool and must Close it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return pool, nil
}
