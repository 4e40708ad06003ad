// Copyright 2025 Certen Protocol
//
// Audit Sink Tests

package audit

import (
	"context"
	"math/big"
	"testing"

	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/receipt"
)

func TestNew_DisabledSinkIsNoOp(t *testing.T) {
	sink, err := New(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if sink.IsEnabled() {
		t.Error("disabled sink should report IsEnabled() == false")
	}
}

func TestNew_EnabledWithoutProjectIDFails(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true})
	if err == nil {
		t.Error("expected an enabled sink with no project id to fail")
	}
}

func TestDisabledSink_MirrorMethodsAreNoOps(t *testing.T) {
	sink, err := New(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var id mint.OrderID
	r := &receipt.Receipt{OrderAmount: big.NewInt(100)}
	if err := sink.MirrorReceipt(context.Background(), id, r); err != nil {
		t.Errorf("expected disabled sink's MirrorReceipt to be a no-op, got %v", err)
	}
	if err := sink.MirrorSessionTransition(context.Background(), "sess-1", "settled"); err != nil {
		t.Errorf("expected disabled sink's MirrorSessionTransition to be a no-op, got %v", err)
	}
}

func TestDisabledSink_CloseIsSafe(t *testing.T) {
	sink, err := New(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("expected closing a disabled sink to succeed, got %v", err)
	}
}
