// Copyright 2025 Certen Protocol
//
// Engine wires the Escrow Store, the Triple-Clock, the Identifier Mint,
// and the Receipt Builder into the public operations spec.md §4.1
// names. Every operation writes the escrow through a single Store.Insert
// or Store.Mutate critical section: either the whole transition applies,
// or the escrow is left untouched.

package escrow

import (
	"fmt"
	"log"

	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/profile"
	"github.com/txbridge/engine/pkg/receipt"
)

// Engine is the escrow state machine's public entry point.
type Engine struct {
	clock    clock.Clock
	mint     *mint.Mint
	store    *Store
	receipts *receipt.Store
	chainID  uint64
	logger   *log.Logger
}

// NewEngine creates an Engine. chainID is the engine's own chain id,
// recorded as the seller's chain at accept time (spec.md §9).
func NewEngine(clk clock.Clock, mt *mint.Mint, store *Store, receipts *receipt.Store, chainID uint64, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[Escrow] ", log.LstdFlags)
	}
	return &Engine{clock: clk, mint: mt, store: store, receipts: receipts, chainID: chainID, logger: logger}
}

// BuyerCommit mints a new order and locks it into BuyerCommitted.
func (e *Engine) BuyerCommit(buyer, seller string, amount uint64, prof profile.Profile, buyerChainID uint64, buyerCommitTxID string) (mint.OrderID, error) {
	if buyerCommitTxID == "" {
		return mint.OrderID{}, ErrMissingTxID
	}
	if amount == 0 {
		return mint.OrderID{}, ErrZeroAmount
	}

	if !CanTransition("", StateBuyerCommitted) {
		return mint.OrderID{}, ErrInvalidState
	}

	now := e.clock.Now()
	id := e.mint.NextOrderID()

	r := &Record{
		OrderID:                id,
		Buyer:                  buyer,
		Seller:                 seller,
		Amount:                 amount,
		Profile:                prof,
		State:                  StateBuyerCommitted,
		BuyerCommitMono:        now.Mono,
		AcceptanceDeadlineMono: deadline(now.Mono, prof.Timing.AcceptanceWindowSecs),
		BuyerChainID:           buyerChainID,
		BuyerCommitTxID:        buyerCommitTxID,
	}

	if err := e.store.Insert(r); err != nil {
		return mint.OrderID{}, err
	}
	e.logger.Printf("buyer_commit order=%s amount=%d", id, amount)
	return id, nil
}

// SellerAccept transitions BuyerCommitted -> SellerAccepted.
func (e *Engine) SellerAccept(id mint.OrderID, sellerAcceptTxID string) error {
	if sellerAcceptTxID == "" {
		return ErrMissingTxID
	}
	now := e.clock.Now()

	_, err := e.store.Mutate(id, func(r *Record) error {
		if !CanTransition(r.State, StateSellerAccepted) {
			return ErrInvalidState
		}
		if now.Mono > r.AcceptanceDeadlineMono {
			return ErrAcceptanceExpired
		}
		accept := now.Mono
		r.SellerAcceptMono = &accept
		r.SellerChainID = e.chainID
		r.SellerAcceptTxID = sellerAcceptTxID
		fulfillDeadline := deadline(accept, r.Profile.Timing.FulfillmentWindowSecs)
		r.FulfillmentDeadlineMono = &fulfillDeadline
		r.State = StateSellerAccepted
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Printf("seller_accept order=%s", id)
	return nil
}

// SellerFulfill transitions {SellerAccepted, FulfillmentExpired} ->
// SellerFulfilled (or re-stamps FulfillmentExpired if late), producing
// the receipt stub.
func (e *Engine) SellerFulfill(id mint.OrderID, sellerFulfillTxID string, sessionID string) error {
	if sellerFulfillTxID == "" {
		return ErrMissingTxID
	}
	now := e.clock.Now()

	var stubIn receipt.StubInput
	_, err := e.store.Mutate(id, func(r *Record) error {
		if !CanTransition(r.State, StateSellerFulfilled) && !CanTransition(r.State, StateFulfillmentExpired) {
			return ErrInvalidState
		}
		isLate := r.FulfillmentDeadlineMono != nil && now.Mono > *r.FulfillmentDeadlineMono

		fulfillMono := now.Mono
		r.FulfillmentMono = &fulfillMono
		r.SellerFulfillTxID = sellerFulfillTxID
		if isLate {
			r.State = StateFulfillmentExpired
		} else {
			r.State = StateSellerFulfilled
		}

		stubIn = receipt.StubInput{
			OrderID:                id,
			SessionID:              sessionID,
			OrderAmount:            r.Amount,
			Now:                    now,
			IsLate:                 isLate,
			EnablesLateDiscount:    r.Profile.EnablesLateDiscount,
			LateDiscountPct:        r.Profile.LateDiscountPct,
			DiscountExpirationDays: r.Profile.DiscountExpirationDays,
			BuyerChainID:           r.BuyerChainID,
			BuyerCommitTxID:        r.BuyerCommitTxID,
			SellerChainID:          r.SellerChainID,
			SellerAcceptTxID:       r.SellerAcceptTxID,
			SellerFulfillTxID:      sellerFulfillTxID,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := e.receipts.Stub(stubIn); err != nil {
		return fmt.Errorf("escrow: receipt stub failed: %w", err)
	}
	e.logger.Printf("seller_fulfill order=%s late=%v", id, stubIn.IsLate)
	return nil
}

// SellerClaim transitions {SellerFulfilled, FulfillmentExpired} ->
// SellerClaimed and finalizes the receipt as a claim.
func (e *Engine) SellerClaim(id mint.OrderID, sellerClaimTxID string) (uint64, error) {
	return e.settle(id, sellerClaimTxID, "", StateSellerClaimed)
}

// SellerRefund transitions {SellerFulfilled, FulfillmentExpired} ->
// SellerRefunded and finalizes the receipt as a refund.
func (e *Engine) SellerRefund(id mint.OrderID, sellerRefundTxID string) (uint64, error) {
	return e.settle(id, "", sellerRefundTxID, StateSellerRefunded)
}

func (e *Engine) settle(id mint.OrderID, claimTxID, refundTxID string, target State) (uint64, error) {
	if claimTxID == "" && refundTxID == "" {
		return 0, ErrMissingTxID
	}
	now := e.clock.Now()
	height := e.clock.BlockHeight()

	rec, err := e.store.Mutate(id, func(r *Record) error {
		if !CanTransition(r.State, target) {
			return ErrInvalidState
		}
		if r.FulfillmentMono == nil {
			// FulfillmentExpired reached via UpdateState has no receipt
			// stub to finalize.
			return ErrInvalidState
		}
		settlement := now.Mono
		r.SettlementMono = &settlement
		r.SellerBlockHeight = &height
		if claimTxID != "" {
			r.SellerClaimTxID = claimTxID
		} else {
			r.SellerRefundTxID = refundTxID
		}
		r.State = target
		return nil
	})
	if err != nil {
		return 0, err
	}

	if _, err := e.receipts.Finalize(receipt.FinalizeInput{
		OrderID:           id,
		Now:               now,
		SellerBlockHeight: height,
		ClaimTxID:         claimTxID,
		RefundTxID:        refundTxID,
	}); err != nil {
		return 0, fmt.Errorf("escrow: receipt finalize failed: %w", err)
	}
	e.logger.Printf("settle order=%s state=%s", id, target)
	return rec.Amount, nil
}

// BuyerWithdraw transitions an expired, unaccepted or unfulfilled order
// to BuyerWithdrawn.
func (e *Engine) BuyerWithdraw(id mint.OrderID, buyerWithdrawTxID string) (uint64, error) {
	now := e.clock.Now()

	rec, err := e.store.Mutate(id, func(r *Record) error {
		if !CanTransition(r.State, StateBuyerWithdrawn) {
			return ErrInvalidState
		}
		if r.State == StateBuyerCommitted && now.Mono <= r.AcceptanceDeadlineMono {
			return ErrWithdrawTooEarly
		}

		settlement := now.Mono
		r.SettlementMono = &settlement
		if buyerWithdrawTxID != "" {
			r.BuyerWithdrawTxID = buyerWithdrawTxID
		}
		r.State = StateBuyerWithdrawn
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.logger.Printf("buyer_withdraw order=%s", id)
	return rec.Amount, nil
}

// TimedRelease auto-claims a fulfilled order once the claim window has
// elapsed, synthesizing a deterministic auto-claim txid.
func (e *Engine) TimedRelease(id mint.OrderID) (uint64, error) {
	now := e.clock.Now()

	existing, err := e.store.Get(id)
	if err != nil {
		return 0, err
	}
	if !existing.Profile.AllowsTimedRelease {
		return 0, ErrTimedReleaseDisabled
	}
	if !CanTransition(existing.State, StateSellerClaimed) {
		return 0, ErrInvalidState
	}
	if existing.FulfillmentMono == nil {
		return 0, ErrInvalidState
	}
	if clock.SaturatingSub(now.Mono, *existing.FulfillmentMono) < existing.Profile.Timing.ClaimWindowSecs {
		return 0, ErrClaimWindowNotExpired
	}

	autoTxID := fmt.Sprintf("auto_claim_%d", now.Mono)
	return e.SellerClaim(id, autoTxID)
}

// UpdateState is a pure pull-forward: SellerAccepted escrows past their
// fulfillment deadline move to FulfillmentExpired. No other state is
// affected (spec.md §9, open question (b)).
func (e *Engine) UpdateState(id mint.OrderID) error {
	now := e.clock.Now()
	_, err := e.store.Mutate(id, func(r *Record) error {
		if r.State == StateSellerAccepted && CanTransition(r.State, StateFulfillmentExpired) &&
			r.FulfillmentDeadlineMono != nil && now.Mono > *r.FulfillmentDeadlineMono {
			r.State = StateFulfillmentExpired
		}
		return nil
	})
	return err
}

// GetState returns the current state of an order.
func (e *Engine) GetState(id mint.OrderID) (State, error) {
	r, err := e.store.Get(id)
	if err != nil {
		return "", err
	}
	return r.State, nil
}

// GetRecord returns a clone of the full escrow record for an order.
func (e *Engine) GetRecord(id mint.OrderID) (*Record, error) {
	return e.store.Get(id)
}

// GetReceipt returns the receipt for an order, if one exists.
func (e *Engine) GetReceipt(id mint.OrderID) (*receipt.Receipt, bool) {
	return e.receipts.Get(id)
}

// GetReceipts returns every receipt currently known to the engine.
func (e *Engine) GetReceipts() []*receipt.Receipt {
	return e.receipts.All()
}
