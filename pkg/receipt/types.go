// Copyright 2025 Certen Protocol
//
// Package receipt implements the two-phase Receipt Builder: a stub is
// attached to an order at first fulfillment, notarizing the
// "fulfillment happened" fact before settlement occurs; it is
// finalized exactly once, at claim, refund, or timed release.
package receipt

import (
	"fmt"
	"math/big"

	"github.com/txbridge/engine/pkg/clock"
)

// Receipt is the engine's notarial record of one order's fulfillment
// and settlement. Field order here matches spec.md §6's bit-exact
// canonical schema so JSON output is reproducible across runs.
type Receipt struct {
	SessionID   string   `json:"session_id,omitempty"`
	OrderAmount *big.Int `json:"order_amount"`

	FulfillmentMono uint64 `json:"fulfillment_mono"`
	FulfillmentUnix uint64 `json:"fulfillment_unix"`
	FulfillmentISO  string `json:"fulfillment_iso"`

	SettlementMono uint64 `json:"settlement_mono"`
	SettlementUnix uint64 `json:"settlement_unix"`
	SettlementISO  string `json:"settlement_iso"`

	LateFulfilled           bool   `json:"late_fulfilled"`
	DiscountPct             uint8  `json:"discount_pct"`
	DiscountExpirationUnix  uint64 `json:"discount_expiration_unix"`

	BuyerChainID    uint64 `json:"buyer_chain_id"`
	BuyerCommitTxID string `json:"buyer_commit_txid"`

	SellerChainID     uint64 `json:"seller_chain_id"`
	SellerAcceptTxID  string `json:"seller_accept_txid"`
	SellerFulfillTxID string `json:"seller_fulfill_txid"`

	SellerClaimTxID   string `json:"seller_claim_txid,omitempty"`
	SellerRefundTxID  string `json:"seller_refund_txid,omitempty"`
	BuyerWithdrawTxID string `json:"buyer_withdraw_txid,omitempty"`

	SellerBlockHeight uint64 `json:"seller_block_height"`

	finalized bool
}

// Finalized reports whether settlement fields have been written.
func (r *Receipt) Finalized() bool {
	return r.finalized
}

// Validate checks the invariants spec.md §4.2 requires of a finalized
// receipt: positive amount, required fields present, and the claim/refund
// XOR.
func (r *Receipt) Validate() error {
	if r.OrderAmount == nil || r.OrderAmount.Sign() <= 0 {
		return fmt.Errorf("%w: order_amount must be > 0", ErrInvalidReceipt)
	}
	if r.BuyerCommitTxID == "" || r.SellerAcceptTxID == "" || r.SellerFulfillTxID == "" {
		return fmt.Errorf("%w: required provenance field is empty", ErrInvalidReceipt)
	}
	if r.finalized {
		hasClaim := r.SellerClaimTxID != ""
		hasRefund := r.SellerRefundTxID != ""
		if hasClaim == hasRefund {
			return fmt.Errorf("%w: exactly one of claim/refund txid must be set", ErrInvalidReceipt)
		}
	}
	return nil
}

// stampFulfillment writes the fulfillment-side fields from t.
func (r *Receipt) stampFulfillment(t clock.Timestamp) {
	r.FulfillmentMono = t.Mono
	r.FulfillmentUnix = t.Unix
	r.FulfillmentISO = t.ISO
}

// stampSettlement writes the settlement-side fields from t.
func (r *Receipt) stampSettlement(t clock.Timestamp) {
	r.SettlementMono = t.Mono
	r.SettlementUnix = t.Unix
	r.SettlementISO = t.ISO
}
