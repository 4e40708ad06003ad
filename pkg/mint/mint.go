// Copyright 2025 Certen Protocol
//
// Package mint generates order identifiers and session identifiers from
// an engine-local monotonic counter. Nothing here reads the OS clock or
// an external randomness source for session ids — a counter-seeded
// deterministic UUID (v3/MD5 per RFC 4122 by way of google/uuid) keeps
// the whole engine reproducible from a fixed starting counter, which
// property-based replay of operation sequences depends on.
package mint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// namespace is a fixed, arbitrary UUID used as the root of the
// deterministic session-id derivation. It has no meaning beyond being
// a stable salt.
var namespace = uuid.MustParse("6f6d8c9a-9f1e-4b5c-8a1d-6b6b6e6f6e6e")

// OrderID is the engine's opaque 32-byte order identifier.
type OrderID [32]byte

// Mint is the engine's identifier source. It is safe for concurrent
// use: every method serializes on an internal mutex, and order ids and
// session ids draw from the same counter.
type Mint struct {
	mu      sync.Mutex
	counter uint64
}

// New creates a Mint starting its counter at zero.
func New() *Mint {
	return &Mint{}
}

// NextOrderID derives the next order id from the counter. The id is
// sha256(bigEndianCounter || "order!!!") (sha256 already produces
// exactly 32 bytes), so two Mints seeded identically and driven by
// the same number of calls always produce the same sequence of ids.
func (m *Mint) NextOrderID() OrderID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return deriveOrderID(m.counter)
}

func deriveOrderID(counter uint64) OrderID {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], counter)
	copy(buf[8:], []byte("order!!!"))
	return sha256.Sum256(buf[:])
}

// NextSessionID derives the next session id as a deterministic UUID
// (v3, MD5) keyed by the counter, so that session ids are stable across
// replays of the same operation sequence.
func (m *Mint) NextSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return deriveSessionID(m.counter).String()
}

func deriveSessionID(counter uint64) uuid.UUID {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)
	return uuid.NewMD5(namespace, buf[:])
}

// String renders an OrderID as 0x-prefixed lowercase hex, matching the
// 32-byte hash rendering convention used throughout the codebase.
func (o OrderID) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+len(o)*2)
	out[0], out[1] = '0', 'x'
	for i, b := range o {
		out[2+i*2] = hextable[b>>4]
		out[2+i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// IsZero reports whether o is the zero OrderID (never minted).
func (o OrderID) IsZero() bool {
	return o == OrderID{}
}

// MarshalJSON renders an OrderID as its 0x-prefixed hex string.
func (o OrderID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

// UnmarshalJSON parses a 0x-prefixed hex string into an OrderID.
func (o *OrderID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid order id: %w", err)
	}
	if len(b) != len(*o) {
		return fmt.Errorf("invalid order id length: got %d bytes, want %d", len(b), len(*o))
	}
	copy(o[:], b)
	return nil
}
