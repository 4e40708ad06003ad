// Copyright 2025 Certen Protocol

package session

import "errors"

// Sentinel errors for session operations (spec.md §4.3, §4.4, §7).
var (
	ErrInvalidTransition  = errors.New("session: transition not allowed from current state")
	ErrTerminalState      = errors.New("session: session is in a terminal state")
	ErrSessionTimeout     = errors.New("session: session has timed out")
	ErrSessionNotFound    = errors.New("session: session not found")
	ErrSessionExists      = errors.New("session: session id already present in registry")
	ErrNoCommonVersion    = errors.New("session: no common protocol version")
	ErrNoCommonChain      = errors.New("session: no common chain id")
)
