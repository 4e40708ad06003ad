// Copyright 2025 Certen Protocol

package escrow

import "errors"

// Sentinel errors for escrow operations (spec.md §4.1, §7).
var (
	ErrMissingTxID           = errors.New("escrow: txid must not be empty")
	ErrInvalidState          = errors.New("escrow: operation not valid in current state")
	ErrAcceptanceExpired     = errors.New("escrow: acceptance deadline has passed")
	ErrWithdrawTooEarly      = errors.New("escrow: withdraw attempted before deadline")
	ErrTimedReleaseDisabled  = errors.New("escrow: profile does not allow timed release")
	ErrClaimWindowNotExpired = errors.New("escrow: claim window has not elapsed")
	ErrZeroAmount            = errors.New("escrow: amount must be greater than zero")
	ErrOrderNotFound         = errors.New("escrow: order not found")
	ErrOrderExists           = errors.New("escrow: order id already present in store")
)
