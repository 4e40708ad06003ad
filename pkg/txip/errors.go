package txip

import "errors"

// Sentinel errors for envelope construction and validation (spec.md §4.3, §7).
var (
	ErrUnsupportedVersion  = errors.New("txip: unsupported protocol version")
	ErrPayloadMismatch     = errors.New("txip: payload variant does not match message type")
	ErrMissingField        = errors.New("txip: required field missing")
	ErrInvalidAddress      = errors.New("txip: malformed address")
	ErrInvalidTxHash       = errors.New("txip: malformed transaction hash")
	ErrInvalidAmount       = errors.New("txip: amount must be greater than zero")
	ErrInvalidExpiry       = errors.New("txip: expiry is not a valid RFC3339 timestamp")
	ErrFeesOutOfRange      = errors.New("txip: max_fees_bps exceeds 10000")
	ErrUnknownMessageType  = errors.New("txip: unknown message_type")
	ErrUnknownControlType  = errors.New("txip: unknown control_type")
	ErrUnknownTgpPhase     = errors.New("txip: unknown tgp_phase")
)
