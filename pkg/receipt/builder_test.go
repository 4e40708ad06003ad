// Copyright 2025 Certen Protocol
//
// Receipt Builder Tests

package receipt

import (
	"testing"

	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/mint"
)

func stubInput(id mint.OrderID, late bool) StubInput {
	return StubInput{
		OrderID:           id,
		SessionID:         "sess-1",
		OrderAmount:       1000,
		Now:               clock.Timestamp{Mono: 100, Unix: 1_700_000_000, ISO: "2023-11-14T22:13:20Z"},
		IsLate:            late,
		EnablesLateDiscount: true,
		LateDiscountPct:     10,
		DiscountExpirationDays: 90,
		BuyerChainID:      1,
		BuyerCommitTxID:   "0xbuyer",
		SellerChainID:     2,
		SellerAcceptTxID:  "0xaccept",
		SellerFulfillTxID: "0xfulfill",
	}
}

func TestStore_Stub_OnTimeHasNoDiscount(t *testing.T) {
	s := NewStore()
	var id mint.OrderID
	id[0] = 1

	r, err := s.Stub(stubInput(id, false))
	if err != nil {
		t.Fatalf("stub: %v", err)
	}
	if r.DiscountPct != 0 {
		t.Errorf("on-time fulfillment should carry no discount, got %d", r.DiscountPct)
	}
	if r.LateFulfilled {
		t.Error("on-time fulfillment should not be marked late")
	}
}

func TestStore_Stub_LateAppliesDiscountAndExpiration(t *testing.T) {
	s := NewStore()
	var id mint.OrderID
	id[0] = 2

	r, err := s.Stub(stubInput(id, true))
	if err != nil {
		t.Fatalf("stub: %v", err)
	}
	if r.DiscountPct != 10 {
		t.Errorf("late fulfillment should carry 10%% discount, got %d", r.DiscountPct)
	}
	wantExpiry := uint64(1_700_000_000) + 90*86400
	if r.DiscountExpirationUnix != wantExpiry {
		t.Errorf("discount expiration: got %d, want %d", r.DiscountExpirationUnix, wantExpiry)
	}
	if r.Finalized() {
		t.Error("a freshly stubbed receipt should not be finalized")
	}
}

func TestStore_Finalize_RequiresExactlyOneOfClaimOrRefund(t *testing.T) {
	s := NewStore()
	var id mint.OrderID
	id[0] = 3
	if _, err := s.Stub(stubInput(id, false)); err != nil {
		t.Fatalf("stub: %v", err)
	}

	_, err := s.Finalize(FinalizeInput{OrderID: id, Now: clock.Timestamp{Unix: 1_700_001_000}})
	if err == nil {
		t.Error("expected finalize with neither claim nor refund to fail")
	}

	_, err = s.Finalize(FinalizeInput{
		OrderID:    id,
		Now:        clock.Timestamp{Unix: 1_700_001_000},
		ClaimTxID:  "0xclaim",
		RefundTxID: "0xrefund",
	})
	if err == nil {
		t.Error("expected finalize with both claim and refund to fail")
	}
}

func TestStore_Finalize_Claim(t *testing.T) {
	s := NewStore()
	var id mint.OrderID
	id[0] = 4
	if _, err := s.Stub(stubInput(id, false)); err != nil {
		t.Fatalf("stub: %v", err)
	}

	r, err := s.Finalize(FinalizeInput{
		OrderID:           id,
		Now:               clock.Timestamp{Mono: 200, Unix: 1_700_001_000, ISO: "2023-11-14T22:30:00Z"},
		SellerBlockHeight: 42,
		ClaimTxID:         "0xclaim",
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !r.Finalized() {
		t.Error("expected receipt to be finalized")
	}
	if r.SellerClaimTxID != "0xclaim" || r.SellerRefundTxID != "" {
		t.Errorf("unexpected settlement txids: claim=%s refund=%s", r.SellerClaimTxID, r.SellerRefundTxID)
	}
	if r.SellerBlockHeight != 42 {
		t.Errorf("block height: got %d, want 42", r.SellerBlockHeight)
	}
}

func TestStore_Finalize_TwiceFails(t *testing.T) {
	s := NewStore()
	var id mint.OrderID
	id[0] = 5
	if _, err := s.Stub(stubInput(id, false)); err != nil {
		t.Fatalf("stub: %v", err)
	}
	fin := FinalizeInput{OrderID: id, Now: clock.Timestamp{Unix: 1_700_001_000}, ClaimTxID: "0xclaim"}
	if _, err := s.Finalize(fin); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if _, err := s.Finalize(fin); err != ErrAlreadyFinalized {
		t.Errorf("expected ErrAlreadyFinalized on second finalize, got %v", err)
	}
}

func TestStore_Finalize_WithoutStubFails(t *testing.T) {
	s := NewStore()
	var id mint.OrderID
	id[0] = 6
	if _, err := s.Finalize(FinalizeInput{OrderID: id, Now: clock.Timestamp{Unix: 1}, ClaimTxID: "0xclaim"}); err != ErrNoStub {
		t.Errorf("expected ErrNoStub, got %v", err)
	}
}

func TestReceipt_Validate_RejectsZeroAmount(t *testing.T) {
	r := &Receipt{BuyerCommitTxID: "a", SellerAcceptTxID: "b", SellerFulfillTxID: "c"}
	if err := r.Validate(); err == nil {
		t.Error("expected validation to reject a nil/zero order amount")
	}
}
