// Copyright 2025 Certen Protocol
//
// Escrow Store: an in-memory keyed collection of escrow records, unique
// by order id, backed by the pkg/kv interface the way the ledger
// package keys system/anchor state by a byte-string prefix.
//
// CONCURRENCY: Store assumes single-writer access per order id. Callers
// driving concurrent orders may shard by order id; no two goroutines
// may mutate the same order concurrently.

package escrow

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/txbridge/engine/pkg/kv"
	"github.com/txbridge/engine/pkg/mint"
)

var keyOrderPrefix = []byte("escrow:order:")

func orderKey(id mint.OrderID) []byte {
	return append(append([]byte{}, keyOrderPrefix...), id[:]...)
}

// Store is the process-wide keyed collection of escrow records.
type Store struct {
	mu sync.RWMutex
	kv kv.KV
}

// NewStore creates a Store backed by the given KV. Callers that don't
// need durability pass kv.NewMemDB().
func NewStore(backing kv.KV) *Store {
	return &Store{kv: backing}
}

// Insert adds a brand-new record, failing if the order id is already
// present (uniqueness invariant, spec.md §3).
func (s *Store) Insert(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.kv.Get(orderKey(r.OrderID))
	if err != nil {
		return fmt.Errorf("escrow store: get failed: %w", err)
	}
	if existing != nil {
		return ErrOrderExists
	}
	return s.put(r)
}

// Update overwrites an existing record. Callers must have obtained the
// record via Get (or hold external knowledge it exists); Update does
// not enforce existence since the state machine always reads-then-writes
// within a single critical section via Mutate.
func (s *Store) Update(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(r)
}

func (s *Store) put(r *Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("escrow store: marshal failed: %w", err)
	}
	if err := s.kv.Set(orderKey(r.OrderID), b); err != nil {
		return fmt.Errorf("escrow store: set failed: %w", err)
	}
	return nil
}

// Get returns a clone of the record for the given order id, or
// ErrOrderNotFound.
func (s *Store) Get(id mint.OrderID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *Store) get(id mint.OrderID) (*Record, error) {
	b, err := s.kv.Get(orderKey(id))
	if err != nil {
		return nil, fmt.Errorf("escrow store: get failed: %w", err)
	}
	if b == nil {
		return nil, ErrOrderNotFound
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("escrow store: unmarshal failed: %w", err)
	}
	return &r, nil
}

// Mutate atomically reads the record for id, applies fn, and persists
// the result — the single point through which every state-machine
// operation touches the store, so no two operations on the same order
// can interleave their read and write.
func (s *Store) Mutate(id mint.OrderID, fn func(r *Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	if err := s.put(r); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// All returns a clone of every record in the store, in key (order id)
// order. Used by property-based tests and administrative queries; not
// on any hot path.
func (s *Store) All() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	var iterErr error
	err := s.kv.Iterate(keyOrderPrefix, func(_ []byte, value []byte) bool {
		var r Record
		if jsonErr := json.Unmarshal(value, &r); jsonErr != nil {
			iterErr = jsonErr
			return false
		}
		out = append(out, &r)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("escrow store: iterate failed: %w", err)
	}
	if iterErr != nil {
		return nil, fmt.Errorf("escrow store: iterate unmarshal failed: %w", iterErr)
	}
	return out, nil
}
