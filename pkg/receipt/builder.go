// Copyright 2025 Certen Protocol

package receipt

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/mint"
)

// StubInput carries everything needed to produce the fulfillment-time
// receipt stub (spec.md §4.2).
type StubInput struct {
	OrderID     mint.OrderID
	SessionID   string
	OrderAmount uint64
	Now         clock.Timestamp

	IsLate                 bool
	EnablesLateDiscount    bool
	LateDiscountPct        uint8
	DiscountExpirationDays uint64

	BuyerChainID    uint64
	BuyerCommitTxID string

	SellerChainID     uint64
	SellerAcceptTxID  string
	SellerFulfillTxID string
}

// FinalizeInput carries the settlement-time fields needed to finalize a
// stub. Exactly one of ClaimTxID / RefundTxID must be non-empty.
type FinalizeInput struct {
	OrderID           mint.OrderID
	Now               clock.Timestamp
	SellerBlockHeight uint64
	ClaimTxID         string
	RefundTxID        string
}

// Store holds at most one Receipt per order id — the stub created at
// fulfillment, later mutated in place by Finalize. Stub replaces any
// earlier stub for the same order, so a repeated late seller_fulfill
// (FulfillmentExpired -> FulfillmentExpired) leaves only the newest one.
type Store struct {
	mu    sync.RWMutex
	byOrd map[mint.OrderID]*Receipt
}

// NewStore creates an empty receipt store.
func NewStore() *Store {
	return &Store{byOrd: make(map[mint.OrderID]*Receipt)}
}

// Stub creates and stores the fulfillment-time receipt for in.OrderID.
func (s *Store) Stub(in StubInput) (*Receipt, error) {
	discountPct := uint8(0)
	if in.IsLate && in.EnablesLateDiscount {
		discountPct = in.LateDiscountPct
	}
	var discountExpirationUnix uint64
	if discountPct > 0 {
		discountExpirationUnix = in.Now.Unix + in.DiscountExpirationDays*86400
	}

	r := &Receipt{
		SessionID:              in.SessionID,
		OrderAmount:            new(big.Int).SetUint64(in.OrderAmount),
		LateFulfilled:          in.IsLate,
		DiscountPct:            discountPct,
		DiscountExpirationUnix: discountExpirationUnix,
		BuyerChainID:           in.BuyerChainID,
		BuyerCommitTxID:        in.BuyerCommitTxID,
		SellerChainID:          in.SellerChainID,
		SellerAcceptTxID:       in.SellerAcceptTxID,
		SellerFulfillTxID:      in.SellerFulfillTxID,
	}
	r.stampFulfillment(in.Now)

	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrd[in.OrderID] = r
	return r, nil
}

// Finalize locates the stub for in.OrderID and writes the settlement
// fields in place. It is an error to finalize twice or to finalize an
// order with no stub.
func (s *Store) Finalize(in FinalizeInput) (*Receipt, error) {
	hasClaim := in.ClaimTxID != ""
	hasRefund := in.RefundTxID != ""
	if hasClaim == hasRefund {
		return nil, fmt.Errorf("%w: exactly one of claim/refund txid must be supplied", ErrInvalidReceipt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byOrd[in.OrderID]
	if !ok {
		return nil, ErrNoStub
	}
	if r.finalized {
		return nil, ErrAlreadyFinalized
	}

	r.stampSettlement(in.Now)
	r.SellerBlockHeight = in.SellerBlockHeight
	r.SellerClaimTxID = in.ClaimTxID
	r.SellerRefundTxID = in.RefundTxID
	r.finalized = true

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the receipt for id, if any.
func (s *Store) Get(id mint.OrderID) (*Receipt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byOrd[id]
	return r, ok
}

// All returns every receipt currently in the store. Order is
// unspecified; callers that need a stable order sort by OrderID
// themselves.
func (s *Store) All() []*Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Receipt, 0, len(s.byOrd))
	for _, r := range s.byOrd {
		out = append(out, r)
	}
	return out
}
