// Copyright 2025 Certen Protocol
//
// Package audit mirrors receipt and session lifecycle events to
// Firestore for real-time off-engine observation, grounded on the
// validator's Firestore sync service: the same enabled/no-op client
// split, the same Firebase Admin SDK wiring (spec.md §10).
package audit

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/receipt"
)

// Config configures the Firestore audit sink.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Logger          *log.Logger
}

// Sink mirrors escrow and session events to Firestore. When disabled
// every method is a no-op, so the engine can be built and run without
// a GCP project configured.
type Sink struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
	mu        sync.RWMutex
}

// New creates a Sink. If cfg.Enabled is false it returns a valid
// no-op Sink without contacting Firestore.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[Audit] ", log.LstdFlags)
	}

	s := &Sink{
		projectID: cfg.ProjectID,
		logger:    cfg.Logger,
		enabled:   cfg.Enabled,
	}

	if !cfg.Enabled {
		cfg.Logger.Println("audit sink is disabled - running in no-op mode")
		return s, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("audit: project id is required when the sink is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("audit: initialize firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: create firestore client: %w", err)
	}

	s.app = app
	s.firestore = fsClient
	cfg.Logger.Printf("audit sink initialized for project: %s", cfg.ProjectID)
	return s, nil
}

// IsEnabled reports whether the sink actually writes to Firestore.
func (s *Sink) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled && s.firestore != nil
}

// Close releases the underlying Firestore client.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firestore == nil {
		return nil
	}
	return s.firestore.Close()
}

// receiptDoc is the Firestore document shape for a finalized or
// stubbed receipt.
type receiptDoc struct {
	OrderID     string    `firestore:"order_id"`
	SessionID   string    `firestore:"session_id"`
	Finalized   bool      `firestore:"finalized"`
	MirroredAt  time.Time `firestore:"mirrored_at"`
	FulfillISO  string    `firestore:"fulfillment_iso"`
	SettleISO   string    `firestore:"settlement_iso,omitempty"`
	LateFulfill bool      `firestore:"late_fulfilled"`
}

// MirrorReceipt writes r's current shape to the receipts collection,
// keyed by order id so repeated stub/finalize writes overwrite cleanly.
func (s *Sink) MirrorReceipt(ctx context.Context, orderID mint.OrderID, r *receipt.Receipt) error {
	if !s.IsEnabled() {
		return nil
	}
	doc := receiptDoc{
		OrderID:     orderID.String(),
		SessionID:   r.SessionID,
		Finalized:   r.Finalized(),
		MirroredAt:  time.Now(),
		FulfillISO:  r.FulfillmentISO,
		SettleISO:   r.SettlementISO,
		LateFulfill: r.LateFulfilled,
	}
	_, err := s.firestore.Collection("receipts").Doc(orderID.String()).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("audit: mirror receipt: %w", err)
	}
	return nil
}

// sessionEventDoc is the Firestore document shape for a point-in-time
// session state transition.
type sessionEventDoc struct {
	SessionID  string    `firestore:"session_id"`
	State      string    `firestore:"state"`
	MirroredAt time.Time `firestore:"mirrored_at"`
}

// MirrorSessionTransition appends a session state change to the
// sessions collection's event subcollection.
func (s *Sink) MirrorSessionTransition(ctx context.Context, sessionID, state string) error {
	if !s.IsEnabled() {
		return nil
	}
	doc := sessionEventDoc{
		SessionID:  sessionID,
		State:      state,
		MirroredAt: time.Now(),
	}
	_, _, err := s.firestore.Collection("sessions").Doc(sessionID).Collection("events").Add(ctx, doc)
	if err != nil {
		return fmt.Errorf("audit: mirror session transition: %w", err)
	}
	return nil
}
