// Copyright 2025 Certen Protocol
//
// Postgres-backed KV for operators who want the Escrow Store and
// Session Registry to survive process restarts. The engine's core
// logic never imports this file's symbols directly; it only depends on
// the KV interface in kv.go, so swapping MemDB for SQLStore is a
// wiring-time decision made in cmd/txbridged.

package kv

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// SQLStore is a KV implementation backed by a single Postgres table of
// (key, value) rows. It mirrors the connection-pool and health-check
// conventions used elsewhere in this codebase's database client.
type SQLStore struct {
	db     *sql.DB
	table  string
	logger *log.Logger
}

// SQLStoreOption configures a SQLStore.
type SQLStoreOption func(*SQLStore)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) SQLStoreOption {
	return func(s *SQLStore) { s.logger = logger }
}

// NewSQLStore opens a Postgres-backed KV using the given DSN and table
// name, creating the table if it does not already exist.
func NewSQLStore(dsn, table string, opts ...SQLStoreOption) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}
	if table == "" {
		table = "txbridge_kv"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{
		db:     db,
		table:  table,
		logger: log.New(log.Writer(), "[KVStore] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key BYTEA PRIMARY KEY, value BYTEA NOT NULL)`, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	s.logger.Printf("connected to postgres kv store (table=%s)", table)
	return s, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get implements KV.
func (s *SQLStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get failed: %w", err)
	}
	return value, nil
}

// Set implements KV.
func (s *SQLStore) Set(key, value []byte) error {
	_, err := s.db.Exec(fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, s.table), key, value)
	if err != nil {
		return fmt.Errorf("kv set failed: %w", err)
	}
	return nil
}

// Delete implements KV.
func (s *SQLStore) Delete(key []byte) error {
	_, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key)
	if err != nil {
		return fmt.Errorf("kv delete failed: %w", err)
	}
	return nil
}

// Iterate implements KV by scanning every row with the given key prefix.
func (s *SQLStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT key, value FROM %s WHERE key >= $1 ORDER BY key`, s.table), prefix)
	if err != nil {
		return fmt.Errorf("kv iterate failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("kv iterate scan failed: %w", err)
		}
		if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
			break
		}
		if !fn(key, value) {
			break
		}
	}
	return rows.Err()
}
