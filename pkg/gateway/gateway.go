// Copyright 2025 Certen Protocol
//
// Package gateway is the thin HTTP framing layer in front of the
// session machine: it decodes and validates envelopes, checks msg_id
// idempotency, and drives the corresponding session/escrow operation.
// It is deliberately not a production router — no auth, no
// rate-limiting — matching spec.md §1's transport-wiring boundary.
//
// Grounded on the teacher's pkg/server handler shape: a handlers
// struct holding the stores it needs, one Handle* method per route,
// JSON `{"error":"..."}` bodies via writeJSONError.
package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/txbridge/engine/pkg/audit"
	"github.com/txbridge/engine/pkg/escrow"
	"github.com/txbridge/engine/pkg/metrics"
	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/profile"
	"github.com/txbridge/engine/pkg/receipt"
	"github.com/txbridge/engine/pkg/session"
	"github.com/txbridge/engine/pkg/txip"
)

// Gateway wires HTTP requests to the session registry and escrow
// engine.
type Gateway struct {
	registry *session.Registry
	engine   *escrow.Engine
	mint     *mint.Mint
	catalog  profile.Catalog
	metrics  *metrics.Metrics
	audit    *audit.Sink
	logger   *log.Logger
}

// New constructs a Gateway. catalog resolves the profile name carried
// on an order-creation request; a nil catalog falls back to
// profile.DefaultCatalog().
func New(registry *session.Registry, engine *escrow.Engine, mt *mint.Mint, catalog profile.Catalog, m *metrics.Metrics, auditSink *audit.Sink, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(log.Writer(), "[Gateway] ", log.LstdFlags)
	}
	if catalog == nil {
		catalog = profile.DefaultCatalog()
	}
	return &Gateway{registry: registry, engine: engine, mint: mt, catalog: catalog, metrics: m, audit: auditSink, logger: logger}
}

// Routes returns a ServeMux with every route this gateway serves,
// wired the way the teacher's main.go registers its handlers.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", g.HandleCreateSession)
	mux.HandleFunc("POST /v1/sessions/{id}/envelope", g.HandleEnvelope)
	mux.HandleFunc("GET /v1/profiles", g.HandleListProfiles)
	mux.HandleFunc("POST /v1/orders", g.HandleBuyerCommit)
	mux.HandleFunc("GET /v1/orders/{id}", g.HandleGetOrder)
	mux.HandleFunc("POST /v1/orders/{id}/accept", g.HandleSellerAccept)
	mux.HandleFunc("POST /v1/orders/{id}/fulfill", g.HandleSellerFulfill)
	mux.HandleFunc("POST /v1/orders/{id}/claim", g.HandleSellerClaim)
	mux.HandleFunc("POST /v1/orders/{id}/refund", g.HandleSellerRefund)
	mux.HandleFunc("POST /v1/orders/{id}/withdraw", g.HandleBuyerWithdraw)
	mux.HandleFunc("GET /health", g.HandleHealth)
	mux.Handle("GET /metrics", g.metrics.Handler())
	return mux
}

// parseOrderID decodes a 0x-prefixed hex order id from a URL path
// segment, the same encoding mint.OrderID uses over JSON.
func parseOrderID(s string) (mint.OrderID, error) {
	var id mint.OrderID
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid order id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid order id length: got %d bytes, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// HandleHealth reports liveness.
func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// createSessionRequest is the body of POST /v1/sessions: a HELLO
// control payload without an envelope wrapper, since the session id
// does not exist yet.
type createSessionRequest struct {
	SupportedVersions []string `json:"supported_versions"`
	SupportedChainIDs []uint64 `json:"supported_chain_ids"`
	Features          []string `json:"features,omitempty"`
}

// HandleCreateSession mints a session id and negotiates it via HELLO.
func (g *Gateway) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	sessionID := g.mint.NextSessionID()
	result, err := g.registry.Hello(sessionID, req.SupportedVersions, req.SupportedChainIDs, req.Features)
	if err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}
	if g.metrics != nil {
		g.metrics.SessionTransitions.WithLabelValues("", string(session.StateIdle)).Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HandleEnvelope decodes, validates, and dispatches one txip envelope
// against the session named in the URL.
func (g *Gateway) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	env, err := txip.Decode(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if env.SessionID != sessionID {
		writeJSONError(w, http.StatusBadRequest, txip.ErrMissingField)
		return
	}
	if err := txip.Validate(env); err != nil {
		if g.metrics != nil {
			g.metrics.EnvelopeValidationErr.WithLabelValues(string(env.MessageType)).Inc()
		}
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	alreadySeen, err := g.registry.SeenOrRecord(sessionID, env.MsgID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	if alreadySeen {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if g.metrics != nil {
		g.metrics.EnvelopesReceived.WithLabelValues(string(env.MessageType)).Inc()
	}

	if err := g.dispatch(r.Context(), sessionID, env); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleListProfiles returns the catalog of named escrow profiles this
// engine will resolve a buyer_commit request against.
func (g *Gateway) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g.catalog)
}

// buyerCommitRequest is the body of POST /v1/orders.
type buyerCommitRequest struct {
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	Amount          uint64 `json:"amount"`
	Profile         string `json:"profile"`
	BuyerChainID    uint64 `json:"buyer_chain_id"`
	BuyerCommitTxID string `json:"buyer_commit_tx_id"`
}

// HandleBuyerCommit resolves the named profile from the catalog and
// mints a new order in BuyerCommitted.
func (g *Gateway) HandleBuyerCommit(w http.ResponseWriter, r *http.Request) {
	var req buyerCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	prof := g.catalog.Lookup(req.Profile)
	id, err := g.engine.BuyerCommit(req.Buyer, req.Seller, req.Amount, prof, req.BuyerChainID, req.BuyerCommitTxID)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if g.metrics != nil {
		g.metrics.EscrowTransitions.WithLabelValues("", string(escrow.StateBuyerCommitted)).Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"order_id": id.String()})
}

// HandleGetOrder returns the current record and, if settled, the
// receipt for an order.
func (g *Gateway) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := g.engine.GetRecord(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	resp := struct {
		Record  *escrow.Record   `json:"record"`
		Receipt *receipt.Receipt `json:"receipt,omitempty"`
	}{Record: rec}
	if rcpt, ok := g.engine.GetReceipt(id); ok {
		resp.Receipt = rcpt
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type sellerAcceptRequest struct {
	SellerAcceptTxID string `json:"seller_accept_tx_id"`
	SessionID        string `json:"session_id,omitempty"`
}

// HandleSellerAccept transitions an order to SellerAccepted. This is the
// control-plane counterpart of the wire protocol's missing ACCEPT phase:
// txip carries no ACCEPT message type, so the seller's acceptance is
// delivered here instead, and when the order was negotiated under a
// session it drives that session's OfferReceived -> AcceptSent transition
// (see DESIGN.md) so a later SETTLE can carry it on to Finalizing/Settled.
func (g *Gateway) HandleSellerAccept(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	var req sellerAcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if err := g.engine.SellerAccept(id, req.SellerAcceptTxID); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if g.metrics != nil {
		g.metrics.EscrowTransitions.WithLabelValues(string(escrow.StateBuyerCommitted), string(escrow.StateSellerAccepted)).Inc()
	}
	if req.SessionID != "" {
		from, _ := g.registry.Get(req.SessionID)
		if _, err := g.registry.Transition(req.SessionID, session.StateAcceptSent); err != nil {
			writeJSONError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if g.metrics != nil {
			fromState := session.State("")
			if from != nil {
				fromState = from.State
			}
			g.metrics.SessionTransitions.WithLabelValues(string(fromState), string(session.StateAcceptSent)).Inc()
		}
	}
	w.WriteHeader(http.StatusOK)
}

type sellerFulfillRequest struct {
	SellerFulfillTxID string `json:"seller_fulfill_tx_id"`
	SessionID         string `json:"session_id,omitempty"`
}

// HandleSellerFulfill transitions an order to SellerFulfilled (or
// FulfillmentExpired if the deadline already passed) and stubs its
// receipt.
func (g *Gateway) HandleSellerFulfill(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	var req sellerFulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if err := g.engine.SellerFulfill(id, req.SellerFulfillTxID, req.SessionID); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if g.metrics != nil {
		g.metrics.EscrowTransitions.WithLabelValues(string(escrow.StateSellerAccepted), string(escrow.StateSellerFulfilled)).Inc()
	}
	w.WriteHeader(http.StatusOK)
}

type sellerSettleRequest struct {
	TxID string `json:"tx_id"`
}

// HandleSellerClaim finalizes an order as claimed and mirrors its
// receipt to the audit sink.
func (g *Gateway) HandleSellerClaim(w http.ResponseWriter, r *http.Request) {
	g.handleSettle(w, r, func(id mint.OrderID, txID string) (uint64, error) {
		return g.engine.SellerClaim(id, txID)
	}, escrow.StateSellerClaimed)
}

// HandleSellerRefund finalizes an order as refunded and mirrors its
// receipt to the audit sink.
func (g *Gateway) HandleSellerRefund(w http.ResponseWriter, r *http.Request) {
	g.handleSettle(w, r, func(id mint.OrderID, txID string) (uint64, error) {
		return g.engine.SellerRefund(id, txID)
	}, escrow.StateSellerRefunded)
}

func (g *Gateway) handleSettle(w http.ResponseWriter, r *http.Request, op func(mint.OrderID, string) (uint64, error), to escrow.State) {
	id, err := parseOrderID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	var req sellerSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := op(id, req.TxID); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if g.metrics != nil {
		g.metrics.EscrowTransitions.WithLabelValues(string(escrow.StateSellerFulfilled), string(to)).Inc()
	}
	if g.audit != nil {
		if rcpt, ok := g.engine.GetReceipt(id); ok {
			_ = g.audit.MirrorReceipt(r.Context(), id, rcpt)
		}
	}
	w.WriteHeader(http.StatusOK)
}

type buyerWithdrawRequest struct {
	BuyerWithdrawTxID string `json:"buyer_withdraw_tx_id,omitempty"`
}

// HandleBuyerWithdraw returns an expired, unaccepted or unfulfilled
// order to the buyer.
func (g *Gateway) HandleBuyerWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	var req buyerWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := g.engine.BuyerWithdraw(id, req.BuyerWithdrawTxID); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if g.metrics != nil {
		g.metrics.EscrowTransitions.WithLabelValues("", string(escrow.StateBuyerWithdrawn)).Inc()
	}
	w.WriteHeader(http.StatusOK)
}

// dispatch applies env's side effect to the session registry, mirroring
// the negotiation forward one or more Registry.Transition calls per
// message. SETTLE assumes the session already reached AcceptSent, which
// HandleSellerAccept is responsible for driving the session into before
// a SETTLE envelope can arrive (see DESIGN.md).
func (g *Gateway) dispatch(ctx context.Context, sessionID string, env txip.Envelope) error {
	var from session.State
	if rec, err := g.registry.Get(sessionID); err == nil {
		from = rec.State
	}

	var to session.State
	switch env.MessageType {
	case txip.MessageTypeControl:
		payload, err := env.DecodeControlPayload()
		if err != nil {
			return err
		}
		switch payload.ControlType {
		case txip.ControlTypeHeartbeat:
			return g.registry.Heartbeat(sessionID)
		case txip.ControlTypeClose:
			return g.registry.Close(sessionID)
		default:
			return nil
		}
	case txip.MessageTypeTgp:
		payload, err := env.DecodeTgpPayload()
		if err != nil {
			return err
		}
		switch env.TgpPhase {
		case txip.TgpPhaseQuery:
			to = session.StateQuerySent
			if _, err := g.registry.Transition(sessionID, to); err != nil {
				return err
			}
			return g.registry.RecordQuery(sessionID, payload.Query.QueryID)
		case txip.TgpPhaseOffer:
			to = session.StateOfferReceived
			if _, err := g.registry.Transition(sessionID, to); err != nil {
				return err
			}
			return g.registry.RecordOffer(sessionID, payload.Offer.OfferID)
		case txip.TgpPhaseSettle:
			to = session.StateSettled
			if _, err := g.registry.Transition(sessionID, session.StateFinalizing); err != nil {
				return err
			}
			if _, err := g.registry.Transition(sessionID, to); err != nil {
				return err
			}
			if g.audit != nil {
				_ = g.audit.MirrorSessionTransition(ctx, sessionID, string(to))
			}
			return nil
		}
		return nil
	case txip.MessageTypeError:
		to = session.StateErrored
		_, err := g.registry.ForceError(sessionID)
		if err == nil && g.metrics != nil {
			g.metrics.SessionTransitions.WithLabelValues(string(from), string(to)).Inc()
		}
		return err
	}

	if g.metrics != nil && to != "" {
		g.metrics.SessionTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
	return nil
}
