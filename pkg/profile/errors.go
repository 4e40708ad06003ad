// Copyright 2025 Certen Protocol

package profile

import "errors"

// Sentinel errors for profile validation.
var (
	ErrDiscountPctOutOfRange = errors.New("late discount percentage must be in 0..=100")
)
