// Copyright 2025 Certen Protocol
//
// Package escrow implements the per-order escrow state machine: the
// engine's core. Every public method is a synchronous, atomic
// transformation over a single Escrow record — no partial application
// on error, no internal goroutines, single-writer-per-order discipline.
package escrow

import (
	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/profile"
)

// State is the tagged lifecycle state of an escrow record.
type State string

const (
	StateBuyerCommitted    State = "buyer_committed"
	StateSellerAccepted    State = "seller_accepted"
	StateSellerFulfilled   State = "seller_fulfilled"
	StateFulfillmentExpired State = "fulfillment_expired"
	StateSellerClaimed     State = "seller_claimed"
	StateSellerRefunded    State = "seller_refunded"
	StateBuyerWithdrawn    State = "buyer_withdrawn"
)

// Terminal reports whether s has no outbound transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSellerClaimed, StateSellerRefunded, StateBuyerWithdrawn:
		return true
	default:
		return false
	}
}

// canTransitionTo is the closed transition relation from spec.md §4.1.
// It is consulted by every mutating operation before any field is
// written, so a rejected transition never leaves a partially-applied
// escrow.
var canTransitionTo = map[State]map[State]bool{
	"": { // the "(none)" origin for buyer_commit
		StateBuyerCommitted: true,
	},
	StateBuyerCommitted: {
		StateSellerAccepted: true,
		StateBuyerWithdrawn: true,
	},
	StateSellerAccepted: {
		StateSellerFulfilled:    true,
		StateFulfillmentExpired: true,
	},
	StateFulfillmentExpired: {
		// a late fulfill re-stamps fulfillment/txid but, since the
		// deadline has already passed, stays in FulfillmentExpired
		// rather than advancing to SellerFulfilled (design note (a)).
		StateFulfillmentExpired: true,
		StateBuyerWithdrawn:     true,
		StateSellerClaimed:      true,
		StateSellerRefunded:     true,
	},
	StateSellerFulfilled: {
		StateSellerClaimed:  true,
		StateSellerRefunded: true,
	},
}

// CanTransition reports whether the closed transition relation allows
// from -> to.
func CanTransition(from, to State) bool {
	targets, ok := canTransitionTo[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Record is the core escrow entity (spec.md §3).
type Record struct {
	OrderID mint.OrderID `json:"order_id"`
	Buyer   string       `json:"buyer"`
	Seller  string       `json:"seller"`
	Amount  uint64       `json:"amount"`

	Profile profile.Profile `json:"profile"`

	State State `json:"state"`

	BuyerCommitMono  uint64  `json:"buyer_commit_mono"`
	SellerAcceptMono *uint64 `json:"seller_accept_mono,omitempty"`
	FulfillmentMono  *uint64 `json:"fulfillment_mono,omitempty"`
	SettlementMono   *uint64 `json:"settlement_mono,omitempty"`

	AcceptanceDeadlineMono  uint64  `json:"acceptance_deadline_mono"`
	FulfillmentDeadlineMono *uint64 `json:"fulfillment_deadline_mono,omitempty"`

	BuyerChainID    uint64 `json:"buyer_chain_id"`
	BuyerCommitTxID string `json:"buyer_commit_txid"`

	SellerChainID     uint64 `json:"seller_chain_id"`
	SellerAcceptTxID  string `json:"seller_accept_txid,omitempty"`
	SellerFulfillTxID string `json:"seller_fulfill_txid,omitempty"`
	SellerClaimTxID   string `json:"seller_claim_txid,omitempty"`
	SellerRefundTxID  string `json:"seller_refund_txid,omitempty"`
	BuyerWithdrawTxID string `json:"buyer_withdraw_txid,omitempty"`

	SellerBlockHeight *uint64 `json:"seller_block_height,omitempty"`
}

// IsCrossChain derives whether buyer and seller provenance reference
// different chains. The engine never reconciles across chains; it only
// records provenance (spec.md §9).
func (r *Record) IsCrossChain() bool {
	return r.BuyerChainID != r.SellerChainID
}

// Clone returns a deep copy of r suitable for returning from a query
// method without letting the caller mutate engine-owned state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.SellerAcceptMono != nil {
		v := *r.SellerAcceptMono
		cp.SellerAcceptMono = &v
	}
	if r.FulfillmentMono != nil {
		v := *r.FulfillmentMono
		cp.FulfillmentMono = &v
	}
	if r.SettlementMono != nil {
		v := *r.SettlementMono
		cp.SettlementMono = &v
	}
	if r.FulfillmentDeadlineMono != nil {
		v := *r.FulfillmentDeadlineMono
		cp.FulfillmentDeadlineMono = &v
	}
	if r.SellerBlockHeight != nil {
		v := *r.SellerBlockHeight
		cp.SellerBlockHeight = &v
	}
	return &cp
}

// deadline computes a saturating forward deadline from a base mono
// value and a window in seconds.
func deadline(base uint64, windowSecs uint64) uint64 {
	sum := base + windowSecs
	if sum < base {
		return ^uint64(0)
	}
	return sum
}
