// Copyright 2025 Certen Protocol
//
// Registry is the process-wide session_id -> Session map plus the
// per-session message-id idempotency cache, grounded on the same KV
// interface the Escrow Store uses (pkg/kv), and the key-prefix layout
// convention from pkg/ledger.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/kv"
)

var keySessionPrefix = []byte("session:")

func sessionKey(id string) []byte {
	return append(append([]byte{}, keySessionPrefix...), []byte(id)...)
}

// Config holds the controller-side negotiation parameters HELLO is
// checked against.
type Config struct {
	SupportedVersions      []string
	SupportedChainIDs      []uint64
	HeartbeatIntervalSecs  uint64
	SessionTimeout         time.Duration
	MsgCacheCapacity       int
}

// DefaultConfig returns a reasonable negotiation configuration.
func DefaultConfig() Config {
	return Config{
		SupportedVersions:     []string{"0.2"},
		SupportedChainIDs:     nil, // nil means "accept any chain"
		HeartbeatIntervalSecs: 30,
		SessionTimeout:        15 * time.Minute,
		MsgCacheCapacity:      defaultMsgCacheCapacity,
	}
}

// Registry is the engine's session registry.
type Registry struct {
	mu    sync.Mutex
	kv    kv.KV
	cfg   Config
	clock clock.Clock
	caches map[string]*msgCache
	logger *log.Logger
}

// NewRegistry creates a Registry backed by the given KV.
func NewRegistry(backing kv.KV, clk clock.Clock, cfg Config, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[Session] ", log.LstdFlags)
	}
	return &Registry{
		kv:     backing,
		cfg:    cfg,
		clock:  clk,
		caches: make(map[string]*msgCache),
		logger: logger,
	}
}

// HelloResult is returned by Hello: the negotiated parameters a WELCOME
// message carries.
type HelloResult struct {
	SessionID             string
	ProtocolVersion       string
	ChainIDs              []uint64
	HeartbeatIntervalSecs uint64
}

// Hello creates a new session, negotiating protocol version and chain
// id sets by intersection with the registry's configuration (spec.md
// §4.4). sessionID is minted by the caller (pkg/mint) so the registry
// does not depend on identifier generation.
func (reg *Registry) Hello(sessionID string, offeredVersions []string, offeredChains []uint64, features []string) (*HelloResult, error) {
	version, err := negotiateVersion(reg.cfg.SupportedVersions, offeredVersions)
	if err != nil {
		return nil, err
	}
	chains, err := negotiateChains(reg.cfg.SupportedChainIDs, offeredChains)
	if err != nil {
		return nil, err
	}

	now := reg.clock.Now()
	rec := &Record{
		SessionID:        sessionID,
		State:            StateIdle,
		CreatedAtUnix:    now.Unix,
		UpdatedAtUnix:    now.Unix,
		LastActivityUnix: now.Unix,
		ProtocolVersion:  version,
		ChainIDs:         chains,
		Features:         features,
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if existing, _ := reg.getLocked(sessionID); existing != nil {
		return nil, ErrSessionExists
	}
	if err := reg.putLocked(rec); err != nil {
		return nil, err
	}
	reg.caches[sessionID] = newMsgCache(reg.cfg.MsgCacheCapacity)

	reg.logger.Printf("hello session=%s version=%s", sessionID, version)
	return &HelloResult{
		SessionID:             sessionID,
		ProtocolVersion:       version,
		ChainIDs:              chains,
		HeartbeatIntervalSecs: reg.cfg.HeartbeatIntervalSecs,
	}, nil
}

func negotiateVersion(supported, offered []string) (string, error) {
	offeredSet := make(map[string]bool, len(offered))
	for _, v := range offered {
		offeredSet[v] = true
	}
	for _, v := range supported {
		if offeredSet[v] {
			return v, nil
		}
	}
	return "", ErrNoCommonVersion
}

func negotiateChains(supported, offered []uint64) ([]uint64, error) {
	if supported == nil {
		return offered, nil
	}
	supportedSet := make(map[uint64]bool, len(supported))
	for _, c := range supported {
		supportedSet[c] = true
	}
	var common []uint64
	for _, c := range offered {
		if supportedSet[c] {
			common = append(common, c)
		}
	}
	if len(common) == 0 {
		return nil, ErrNoCommonChain
	}
	return common, nil
}

// Heartbeat updates last_activity_unix for sessionID.
func (reg *Registry) Heartbeat(sessionID string) error {
	now := reg.clock.Now()
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rec, err := reg.getLocked(sessionID)
	if err != nil {
		return err
	}
	rec.LastActivityUnix = now.Unix
	rec.UpdatedAtUnix = now.Unix
	return reg.putLocked(rec)
}

// Close removes a session and its idempotency cache.
func (reg *Registry) Close(sessionID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, err := reg.getLocked(sessionID); err != nil {
		return err
	}
	delete(reg.caches, sessionID)
	if err := reg.kv.Delete(sessionKey(sessionID)); err != nil {
		return fmt.Errorf("session registry: delete failed: %w", err)
	}
	reg.logger.Printf("close session=%s", sessionID)
	return nil
}

// Get returns a clone of the session record.
func (reg *Registry) Get(sessionID string) (*Record, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.getLocked(sessionID)
}

func (reg *Registry) getLocked(sessionID string) (*Record, error) {
	b, err := reg.kv.Get(sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session registry: get failed: %w", err)
	}
	if b == nil {
		return nil, ErrSessionNotFound
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("session registry: unmarshal failed: %w", err)
	}
	return &rec, nil
}

func (reg *Registry) putLocked(rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session registry: marshal failed: %w", err)
	}
	if err := reg.kv.Set(sessionKey(rec.SessionID), b); err != nil {
		return fmt.Errorf("session registry: set failed: %w", err)
	}
	return nil
}

// Transition drives sessionID from its current state to target,
// enforcing spec.md §4.3's transition relation and §5's timeout rule.
// A session past its timeout_at_unix is rejected with ErrSessionTimeout
// on its next transition attempt, regardless of the requested target.
func (reg *Registry) Transition(sessionID string, target State) (*Record, error) {
	now := reg.clock.Now()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	rec, err := reg.getLocked(sessionID)
	if err != nil {
		return nil, err
	}

	if rec.State.Terminal() {
		return nil, ErrTerminalState
	}
	if rec.TimeoutAtUnix != nil && now.Unix > *rec.TimeoutAtUnix {
		return nil, ErrSessionTimeout
	}
	if !CanTransition(rec.State, target) {
		return nil, ErrInvalidTransition
	}

	rec.State = target
	rec.UpdatedAtUnix = now.Unix
	rec.LastActivityUnix = now.Unix
	if timeout := DefaultTimeout(target); timeout > 0 {
		t := now.Unix + uint64(timeout.Seconds())
		rec.TimeoutAtUnix = &t
	} else {
		rec.TimeoutAtUnix = nil
	}

	if err := reg.putLocked(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// ForceError bypasses transition validation entirely and moves
// sessionID to Errored regardless of its current state (spec.md §5),
// except when the session is already terminal.
func (reg *Registry) ForceError(sessionID string) (*Record, error) {
	now := reg.clock.Now()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	rec, err := reg.getLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return nil, ErrTerminalState
	}
	rec.State = StateErrored
	rec.UpdatedAtUnix = now.Unix
	rec.LastActivityUnix = now.Unix
	rec.TimeoutAtUnix = nil

	if err := reg.putLocked(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// SeenOrRecord checks the per-session idempotency cache, recording
// msgID if it has not been seen before. Delivery of an already-seen
// msgID is idempotent success: the caller must not replay side effects.
func (reg *Registry) SeenOrRecord(sessionID, msgID string) (alreadySeen bool, err error) {
	reg.mu.Lock()
	cache, ok := reg.caches[sessionID]
	if !ok {
		if _, getErr := reg.getLocked(sessionID); getErr != nil {
			reg.mu.Unlock()
			return false, getErr
		}
		cache = newMsgCache(reg.cfg.MsgCacheCapacity)
		reg.caches[sessionID] = cache
	}
	reg.mu.Unlock()

	return cache.seenOrRecord(msgID), nil
}

// RecordQuery stamps the correlating query_id onto a session, typically
// called alongside a QuerySent transition.
func (reg *Registry) RecordQuery(sessionID, queryID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec, err := reg.getLocked(sessionID)
	if err != nil {
		return err
	}
	rec.QueryID = queryID
	return reg.putLocked(rec)
}

// RecordOffer stamps the correlating offer_id onto a session, typically
// called alongside an OfferReceived transition.
func (reg *Registry) RecordOffer(sessionID, offerID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec, err := reg.getLocked(sessionID)
	if err != nil {
		return err
	}
	rec.OfferID = offerID
	return reg.putLocked(rec)
}

// Sweep removes every session whose last activity predates the
// registry's configured session timeout, returning the removed ids.
func (reg *Registry) Sweep() ([]string, error) {
	now := reg.clock.Now()
	threshold := reg.cfg.SessionTimeout.Seconds()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	var stale []string
	var iterErr error
	err := reg.kv.Iterate(keySessionPrefix, func(_ []byte, value []byte) bool {
		var rec Record
		if jsonErr := json.Unmarshal(value, &rec); jsonErr != nil {
			iterErr = jsonErr
			return false
		}
		if clock.SaturatingSub(now.Unix, rec.LastActivityUnix) > uint64(threshold) {
			stale = append(stale, rec.SessionID)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("session registry: sweep iterate failed: %w", err)
	}
	if iterErr != nil {
		return nil, fmt.Errorf("session registry: sweep unmarshal failed: %w", iterErr)
	}

	for _, id := range stale {
		if err := reg.kv.Delete(sessionKey(id)); err != nil {
			return nil, fmt.Errorf("session registry: sweep delete failed: %w", err)
		}
		delete(reg.caches, id)
	}
	if len(stale) > 0 {
		reg.logger.Printf("swept %d stale sessions", len(stale))
	}
	return stale, nil
}
