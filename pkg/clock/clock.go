// Copyright 2025 Certen Protocol
//
// Package clock provides the engine's single authoritative time source.
//
// No other package may read the OS clock directly. Every deadline
// computation, receipt stamp, and session timeout check goes through a
// Timestamp produced here, so that a deterministic Clock can drive an
// entire test scenario by calling Advance and a production Clock can
// wire the identical contract to the OS clock.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is the engine's triple-timestamp: monotonic seconds, unix
// seconds, and the RFC-3339 rendering of the unix value. Iso is always
// derived from Unix; callers must never construct one independently.
type Timestamp struct {
	Mono uint64 `json:"mono"`
	Unix uint64 `json:"unix"`
	ISO  string `json:"iso"`
}

// Clock is the interface every escrow, session, and receipt component
// depends on instead of calling into time.Now directly.
type Clock interface {
	// Now returns the current triple-timestamp.
	Now() Timestamp
	// BlockHeight derives the current block height from the configured
	// genesis block/time and block interval.
	BlockHeight() uint64
}

// BlockParams configures the deterministic block-height derivation:
// current_block_height = genesis_block + floor((now.unix - genesis_unix) / block_interval_secs)
type BlockParams struct {
	GenesisBlock        uint64
	GenesisUnix         uint64
	BlockIntervalSecs   uint64
}

// DefaultBlockParams mirrors a conventional ~6s block cadence starting
// at the Unix epoch; callers in production wire real genesis values.
func DefaultBlockParams() BlockParams {
	return BlockParams{GenesisBlock: 0, GenesisUnix: 0, BlockIntervalSecs: 6}
}

// DeterministicClock is a test-driven clock: mono and unix start at a
// fixed offset and only move when Advance is called. It never reads the
// OS clock.
type DeterministicClock struct {
	mu     sync.Mutex
	mono   uint64
	unix   uint64
	blocks BlockParams
}

// NewDeterministicClock creates a clock seeded at the given mono/unix
// pair. Tests typically seed both to 0 or to the same epoch value so
// that `iso` renders a stable wall-clock start.
func NewDeterministicClock(startMono, startUnix uint64, blocks BlockParams) *DeterministicClock {
	return &DeterministicClock{mono: startMono, unix: startUnix, blocks: blocks}
}

// Now returns the current triple-timestamp without advancing it.
func (c *DeterministicClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Advance moves the clock forward by secs seconds, keeping mono and unix
// in lockstep as the invariant in spec.md §3 requires.
func (c *DeterministicClock) Advance(secs uint64) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mono = saturatingAdd(c.mono, secs)
	c.unix = saturatingAdd(c.unix, secs)
	return c.snapshot()
}

// BlockHeight derives the current block height from the configured
// genesis parameters.
func (c *DeterministicClock) BlockHeight() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deriveBlockHeight(c.unix, c.blocks)
}

func (c *DeterministicClock) snapshot() Timestamp {
	return Timestamp{
		Mono: c.mono,
		Unix: c.unix,
		ISO:  renderISO(c.unix),
	}
}

// SystemClock wires the Clock contract to the OS clock. Mono is the
// number of whole seconds elapsed since the clock was constructed (a
// process-local monotonic counter, per Go's time.Since semantics); unix
// tracks it by the same delta so the invariant in spec.md §3 holds.
type SystemClock struct {
	mu        sync.Mutex
	startWall time.Time
	startUnix uint64
	blocks    BlockParams
}

// NewSystemClock creates a clock anchored to the current OS wall-clock
// time.
func NewSystemClock(blocks BlockParams) *SystemClock {
	now := time.Now()
	return &SystemClock{
		startWall: now,
		startUnix: uint64(now.Unix()),
		blocks:    blocks,
	}
}

// Now returns the current triple-timestamp derived from the OS clock.
func (c *SystemClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := uint64(time.Since(c.startWall).Seconds())
	unix := saturatingAdd(c.startUnix, elapsed)
	return Timestamp{
		Mono: elapsed,
		Unix: unix,
		ISO:  renderISO(unix),
	}
}

// BlockHeight derives the current block height from the OS clock.
func (c *SystemClock) BlockHeight() uint64 {
	return deriveBlockHeight(c.Now().Unix, c.blocks)
}

func deriveBlockHeight(unix uint64, p BlockParams) uint64 {
	if p.BlockIntervalSecs == 0 {
		return p.GenesisBlock
	}
	if unix < p.GenesisUnix {
		return p.GenesisBlock
	}
	elapsed := unix - p.GenesisUnix
	return p.GenesisBlock + elapsed/p.BlockIntervalSecs
}

func renderISO(unix uint64) string {
	return time.Unix(int64(unix), 0).UTC().Format(time.RFC3339)
}

// saturatingAdd adds b to a without overflowing past math.MaxUint64.
func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// SaturatingSub subtracts b from a, floored at zero. Exported for
// components (deadline math, elapsed-time checks) that need the same
// no-panic guarantee outside this package.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// ValidateISO reports whether s is a valid RFC-3339 timestamp. It is
// used by the envelope codec to reject malformed expiry strings without
// round-tripping through this package's own clock state.
func ValidateISO(s string) error {
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return fmt.Errorf("invalid RFC-3339 timestamp %q: %w", s, err)
	}
	return nil
}
