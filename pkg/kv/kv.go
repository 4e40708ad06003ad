// Copyright 2025 Certen Protocol
//
// Package kv defines the key-value interface the Escrow Store and
// Session Registry are built on, and a default in-memory implementation.
//
// The engine's core is pure in-memory per spec.md's persistence
// non-goal — KV exists so that store and registry are not hand-rolled
// maps duplicated three times, and so an operator who wants a durable
// backing store can supply one (see Postgres in kv_sql.go) without
// touching escrow or session logic.
package kv

import (
	"bytes"

	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal interface the Escrow Store, Session Registry, and
// message-id idempotency cache depend on.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix, in
	// lexicographic key order, stopping early if fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// MemDB is a KV backed by cometbft-db's in-memory implementation. It is
// the engine's default store: deterministic, process-local, and
// trivially reset between test scenarios.
type MemDB struct {
	db dbm.DB
}

// NewMemDB creates an empty in-memory KV.
func NewMemDB() *MemDB {
	return &MemDB{db: dbm.NewMemDB()}
}

// Get implements KV.
func (m *MemDB) Get(key []byte) ([]byte, error) {
	return m.db.Get(key)
}

// Set implements KV.
func (m *MemDB) Set(key, value []byte) error {
	return m.db.Set(key, value)
}

// Delete implements KV.
func (m *MemDB) Delete(key []byte) error {
	return m.db.Delete(key)
}

// Iterate implements KV by walking the half-open range [prefix, prefixEnd).
func (m *MemDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	end := prefixUpperBound(prefix)
	it, err := m.db.Iterator(prefix, end)
	if err != nil {
		return err
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// prefixUpperBound returns the smallest key that is strictly greater
// than every key with the given prefix, or nil if prefix is all 0xff
// bytes (meaning "no upper bound").
func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
