// Copyright 2025 Certen Protocol
//
// Package profile holds the immutable per-order Payment Profile
// configuration and a small catalog of named presets, the way the
// original coreprover bridge shipped a default PaymentProfile plus
// scenario-specific presets (its test suite used a "pizza" profile by
// name; seed test #1 of this engine does the same).
package profile

// Timing holds the three deadline windows a Profile configures.
type Timing struct {
	AcceptanceWindowSecs  uint64
	FulfillmentWindowSecs uint64
	ClaimWindowSecs       uint64
}

// Profile is the immutable per-order configuration referenced by an
// escrow record. Two escrows may share a Profile value; it is never
// mutated after an order commits.
type Profile struct {
	Timing Timing

	AllowsTimedRelease bool

	EnablesLateDiscount     bool
	LateDiscountPct         uint8 // 0..=100
	DiscountExpirationDays  uint64
}

// Validate reports whether p is a well-formed profile.
func (p Profile) Validate() error {
	if p.LateDiscountPct > 100 {
		return ErrDiscountPctOutOfRange
	}
	return nil
}

// Pizza is the canonical demo profile used by this engine's seed test
// scenarios: a 5 minute acceptance window, a 30 minute fulfillment
// window, a 1 hour claim window, timed release enabled, and a 10%
// late-fulfillment discount expiring after 90 days.
func Pizza() Profile {
	return Profile{
		Timing: Timing{
			AcceptanceWindowSecs:  300,
			FulfillmentWindowSecs: 1800,
			ClaimWindowSecs:       3600,
		},
		AllowsTimedRelease:     true,
		EnablesLateDiscount:    true,
		LateDiscountPct:        10,
		DiscountExpirationDays: 90,
	}
}

// Standard is a conservative preset with no late-fulfillment discount
// and no timed release: longer windows, fully manual settlement.
func Standard() Profile {
	return Profile{
		Timing: Timing{
			AcceptanceWindowSecs:  3600,
			FulfillmentWindowSecs: 86400,
			ClaimWindowSecs:       86400,
		},
		AllowsTimedRelease:  false,
		EnablesLateDiscount: false,
	}
}

// Catalog is a named lookup of profile presets. Configuration loading
// builds it (built-in presets plus an optional YAML profile bundle), and
// the gateway resolves the profile named on an order-creation request
// against it.
type Catalog map[string]Profile

// DefaultCatalog returns the built-in preset catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		"pizza":    Pizza(),
		"standard": Standard(),
	}
}

// Lookup resolves a profile by name, falling back to Standard if the
// name is unknown.
func (c Catalog) Lookup(name string) Profile {
	if p, ok := c[name]; ok {
		return p
	}
	return Standard()
}
