// Copyright 2025 Certen Protocol
//
// Gateway HTTP Handler Tests

package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/escrow"
	"github.com/txbridge/engine/pkg/kv"
	"github.com/txbridge/engine/pkg/metrics"
	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/profile"
	"github.com/txbridge/engine/pkg/receipt"
	"github.com/txbridge/engine/pkg/session"
	"github.com/txbridge/engine/pkg/txip"
)

func newTestGateway() (*Gateway, *clock.DeterministicClock) {
	clk := clock.NewDeterministicClock(0, 1_700_000_000, clock.DefaultBlockParams())
	mt := mint.New()
	escrowEngine := escrow.NewEngine(clk, mt, escrow.NewStore(kv.NewMemDB()), receipt.NewStore(), 2, nil)
	registry := session.NewRegistry(kv.NewMemDB(), clk, session.Config{
		SupportedVersions: []string{"0.2"},
		SessionTimeout:    900_000_000_000,
		MsgCacheCapacity:  16,
	}, nil)
	gw := New(registry, escrowEngine, mt, profile.DefaultCatalog(), metrics.New(), nil, nil)
	return gw, clk
}

func postJSON(t *testing.T, mux http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateSession_NegotiatesAndStoresSession(t *testing.T) {
	gw, _ := newTestGateway()
	mux := gw.Routes()

	rec := postJSON(t, mux, "/v1/sessions", createSessionRequest{SupportedVersions: []string{"0.2"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var result session.HelloResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.SessionID == "" {
		t.Fatal("expected a minted session id")
	}
	if result.ProtocolVersion != "0.2" {
		t.Errorf("protocol version: got %q, want 0.2", result.ProtocolVersion)
	}
}

func TestHandleEnvelope_RejectsSessionIDMismatch(t *testing.T) {
	gw, _ := newTestGateway()
	mux := gw.Routes()

	createRec := postJSON(t, mux, "/v1/sessions", createSessionRequest{SupportedVersions: []string{"0.2"}})
	var result session.HelloResult
	_ = json.Unmarshal(createRec.Body.Bytes(), &result)

	env, _ := txip.NewControl("msg-1", "wrong-session", txip.DirectionClientToTbc, txip.RoleBuyerAgent,
		clock.Timestamp{}, txip.ControlPayload{ControlType: txip.ControlTypeHeartbeat, Heartbeat: &txip.HeartbeatPayload{}})
	raw, _ := txip.Encode(env)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+result.SessionID+"/envelope", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestHandleEnvelope_DuplicateMsgIDIsAccepted(t *testing.T) {
	gw, _ := newTestGateway()
	mux := gw.Routes()

	createRec := postJSON(t, mux, "/v1/sessions", createSessionRequest{SupportedVersions: []string{"0.2"}})
	var result session.HelloResult
	_ = json.Unmarshal(createRec.Body.Bytes(), &result)

	env, _ := txip.NewControl("msg-1", result.SessionID, txip.DirectionClientToTbc, txip.RoleBuyerAgent,
		clock.Timestamp{}, txip.ControlPayload{ControlType: txip.ControlTypeHeartbeat, Heartbeat: &txip.HeartbeatPayload{}})
	raw, _ := txip.Encode(env)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+result.SessionID+"/envelope", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first delivery: got %d, want 200", code)
	}
	if code := send(); code != http.StatusAccepted {
		t.Errorf("replayed delivery: got %d, want 202", code)
	}
}

func TestBuyerCommitFlow_ResolvesProfileFromCatalog(t *testing.T) {
	gw, _ := newTestGateway()
	mux := gw.Routes()

	rec := postJSON(t, mux, "/v1/orders", buyerCommitRequest{
		Buyer:           "buyer1",
		Seller:          "seller1",
		Amount:          1000,
		Profile:         "pizza",
		BuyerChainID:    1,
		BuyerCommitTxID: "0xcommit",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buyer commit status: got %d, body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	orderID := resp["order_id"]
	if orderID == "" {
		t.Fatal("expected an order id in the response")
	}

	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/v1/orders/"+orderID, nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("get order status: got %d", getRec.Code)
	}

	var orderResp struct {
		Record struct {
			Profile profile.Profile `json:"profile"`
			State   string          `json:"state"`
		} `json:"record"`
	}
	if err := json.Unmarshal(getRec.Body.Bytes(), &orderResp); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if orderResp.Record.Profile.Timing.AcceptanceWindowSecs != profile.Pizza().Timing.AcceptanceWindowSecs {
		t.Errorf("expected pizza profile's windows to be resolved from the catalog, got %+v", orderResp.Record.Profile)
	}
	if orderResp.Record.State != string(escrow.StateBuyerCommitted) {
		t.Errorf("state: got %q, want %q", orderResp.Record.State, escrow.StateBuyerCommitted)
	}
}

func TestHandleListProfiles_ReturnsCatalog(t *testing.T) {
	gw, _ := newTestGateway()
	mux := gw.Routes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/profiles", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var catalog profile.Catalog
	if err := json.Unmarshal(rec.Body.Bytes(), &catalog); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := catalog["pizza"]; !ok {
		t.Error("expected the default catalog to include the pizza profile")
	}
}

func TestSessionLifecycle_QueryOfferAcceptSettleReachesSettled(t *testing.T) {
	gw, clk := newTestGateway()
	mux := gw.Routes()

	createRec := postJSON(t, mux, "/v1/sessions", createSessionRequest{SupportedVersions: []string{"0.2"}})
	var hello session.HelloResult
	if err := json.Unmarshal(createRec.Body.Bytes(), &hello); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	sessionID := hello.SessionID

	sendEnvelope := func(env txip.Envelope) int {
		raw, err := txip.Encode(env)
		if err != nil {
			t.Fatalf("encode envelope: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/envelope", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	buyer := "0x111111111111111111111111111111111111111a"
	seller := "0x222222222222222222222222222222222222222b"

	queryEnv, err := txip.NewTgp("msg-query", sessionID, txip.DirectionClientToTbc, txip.RoleBuyerAgent,
		clk.Now(), txip.TgpPhaseQuery, txip.TgpPayload{Query: &txip.QueryMessage{
			QueryID: "q-1",
			From:    buyer,
			To:      seller,
			Asset:   "USDC",
			Amount:  1000,
			ZkProfile: txip.ZkProfileNone,
			Economics: txip.EconomicEnvelope{MaxFeesBps: 100},
		}})
	if err != nil {
		t.Fatalf("build query envelope: %v", err)
	}
	if code := sendEnvelope(queryEnv); code != http.StatusOK {
		t.Fatalf("query: got %d", code)
	}

	offerEnv, err := txip.NewTgp("msg-offer", sessionID, txip.DirectionTbcToClient, txip.RoleTbc,
		clk.Now(), txip.TgpPhaseOffer, txip.TgpPayload{Offer: &txip.OfferMessage{
			OfferID:   "o-1",
			QueryID:   "q-1",
			Asset:     "USDC",
			Amount:    1000,
			Economics: txip.EconomicEnvelope{MaxFeesBps: 100},
		}})
	if err != nil {
		t.Fatalf("build offer envelope: %v", err)
	}
	if code := sendEnvelope(offerEnv); code != http.StatusOK {
		t.Fatalf("offer: got %d", code)
	}

	rec, err := gw.registry.Get(sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if rec.State != session.StateOfferReceived {
		t.Fatalf("state after offer: got %q, want %q", rec.State, session.StateOfferReceived)
	}

	commitRec := postJSON(t, mux, "/v1/orders", buyerCommitRequest{
		Buyer: buyer, Seller: seller, Amount: 1000, Profile: "standard",
		BuyerChainID: 1, BuyerCommitTxID: "0xcommit",
	})
	var commitResp map[string]string
	_ = json.Unmarshal(commitRec.Body.Bytes(), &commitResp)
	orderID := commitResp["order_id"]

	acceptRec := postJSON(t, mux, "/v1/orders/"+orderID+"/accept", sellerAcceptRequest{
		SellerAcceptTxID: "0xaccept",
		SessionID:        sessionID,
	})
	if acceptRec.Code != http.StatusOK {
		t.Fatalf("accept status: got %d, body=%s", acceptRec.Code, acceptRec.Body.String())
	}

	rec, err = gw.registry.Get(sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if rec.State != session.StateAcceptSent {
		t.Fatalf("state after accept: got %q, want %q", rec.State, session.StateAcceptSent)
	}

	settleEnv, err := txip.NewTgp("msg-settle", sessionID, txip.DirectionTbcToClient, txip.RoleTbc,
		clk.Now(), txip.TgpPhaseSettle, txip.TgpPayload{Settle: &txip.SettleMessage{
			SettleID:       "s-1",
			QueryOrOfferID: "o-1",
			Success:        true,
			Source:         txip.SettleSourceControllerWatcher,
		}})
	if err != nil {
		t.Fatalf("build settle envelope: %v", err)
	}
	if code := sendEnvelope(settleEnv); code != http.StatusOK {
		t.Fatalf("settle: got %d", code)
	}

	rec, err = gw.registry.Get(sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if rec.State != session.StateSettled {
		t.Fatalf("final state: got %q, want %q", rec.State, session.StateSettled)
	}
}

func TestHandleHealth(t *testing.T) {
	gw, _ := newTestGateway()
	mux := gw.Routes()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
}
