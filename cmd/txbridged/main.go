// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/txbridge/engine/pkg/audit"
	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/config"
	"github.com/txbridge/engine/pkg/escrow"
	"github.com/txbridge/engine/pkg/gateway"
	"github.com/txbridge/engine/pkg/kv"
	"github.com/txbridge/engine/pkg/metrics"
	"github.com/txbridge/engine/pkg/mint"
	"github.com/txbridge/engine/pkg/receipt"
	"github.com/txbridge/engine/pkg/session"
)

func main() {
	var (
		showHelp = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()
	if *showHelp {
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	catalog, err := config.LoadProfileCatalog(cfg.ProfileCatalogPath)
	if err != nil {
		log.Fatalf("load profile catalog: %v", err)
	}

	clk := clock.NewSystemClock(clock.BlockParams{
		GenesisBlock:      cfg.BlockGenesisHeight,
		GenesisUnix:       cfg.BlockGenesisUnix,
		BlockIntervalSecs: cfg.BlockIntervalSecs,
	})
	mt := mint.New()

	escrowBacking, err := openBacking(cfg, "escrow")
	if err != nil {
		log.Fatalf("open escrow backing store: %v", err)
	}
	sessionBacking, err := openBacking(cfg, "session")
	if err != nil {
		log.Fatalf("open session backing store: %v", err)
	}

	escrowStore := escrow.NewStore(escrowBacking)
	receiptStore := receipt.NewStore()
	escrowEngine := escrow.NewEngine(clk, mt, escrowStore, receiptStore, cfg.ChainID, nil)

	sessionCfg := session.Config{
		SupportedVersions:     cfg.SupportedProtocolVersions,
		SupportedChainIDs:     cfg.SupportedChainIDs,
		HeartbeatIntervalSecs: cfg.HeartbeatIntervalSecs,
		SessionTimeout:        cfg.SessionTimeout,
		MsgCacheCapacity:      cfg.MsgCacheCapacity,
	}
	registry := session.NewRegistry(sessionBacking, clk, sessionCfg, nil)

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditSink, err := audit.New(ctx, audit.Config{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		Enabled:         cfg.AuditEnabled,
	})
	if err != nil {
		log.Fatalf("init audit sink: %v", err)
	}

	gw := gateway.New(registry, escrowEngine, mt, catalog, m, auditSink, nil)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gw.Routes(),
	}

	go func() {
		ticker := time.NewTicker(cfg.SessionTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if swept, err := registry.Sweep(); err != nil {
					log.Printf("session sweep error: %v", err)
				} else if len(swept) > 0 {
					log.Printf("swept %d stale sessions", len(swept))
				}
			}
		}
	}()

	go func() {
		log.Printf("txbridged listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down txbridged")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	if err := auditSink.Close(); err != nil {
		log.Printf("audit sink close error: %v", err)
	}
	log.Printf("txbridged stopped")
}

// openBacking returns the configured KV backing store: SQL-backed if
// TXBRIDGE_DATABASE_URL is set, otherwise an in-memory memdb.
func openBacking(cfg *config.Config, table string) (kv.KV, error) {
	if cfg.DatabaseURL == "" {
		return kv.NewMemDB(), nil
	}
	return kv.NewSQLStore(cfg.DatabaseURL, "txbridge_"+table)
}
