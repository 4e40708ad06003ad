// Copyright 2025 Certen Protocol

package receipt

import "errors"

// Sentinel errors for receipt construction.
var (
	ErrInvalidReceipt   = errors.New("receipt: invalid receipt")
	ErrNoStub           = errors.New("receipt: no fulfillment stub for order")
	ErrAlreadyFinalized = errors.New("receipt: already finalized")
)
