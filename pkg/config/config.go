// Copyright 2025 Certen Protocol
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the txbridge settlement engine.
type Config struct {
	// Server configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Persistence configuration. When DatabaseURL is empty the engine
	// runs fully in-memory (pkg/kv.MemDB); setting it switches the
	// escrow store and session registry to pkg/kv.SQLStore.
	DatabaseURL         string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int

	// Chain identification
	ChainID uint64

	// Service identity
	ServiceID string
	LogLevel  string

	// Session negotiation
	SupportedProtocolVersions []string
	SupportedChainIDs         []uint64
	HeartbeatIntervalSecs     uint64
	SessionTimeout            time.Duration
	MsgCacheCapacity          int

	// Profile catalog overlay (optional YAML file, spec.md §10)
	ProfileCatalogPath string

	// Audit sink (optional Firestore mirror, spec.md §10)
	AuditEnabled            bool
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	// Clock block derivation
	BlockGenesisHeight uint64
	BlockGenesisUnix   uint64
	BlockIntervalSecs  uint64
}

// Load reads configuration from environment variables. Every variable
// is namespaced TXBRIDGE_ so the process can share an environment with
// other services without collision.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("TXBRIDGE_API_HOST", "0.0.0.0") + ":" + getEnv("TXBRIDGE_API_PORT", "8080"),
		MetricsAddr: getEnv("TXBRIDGE_API_HOST", "0.0.0.0") + ":" + getEnv("TXBRIDGE_METRICS_PORT", "9090"),
		HealthAddr:  getEnv("TXBRIDGE_API_HOST", "0.0.0.0") + ":" + getEnv("TXBRIDGE_HEALTH_PORT", "8081"),

		DatabaseURL:          getEnv("TXBRIDGE_DATABASE_URL", ""),
		DatabaseMaxOpenConns: getEnvInt("TXBRIDGE_DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns: getEnvInt("TXBRIDGE_DATABASE_MAX_IDLE_CONNS", 5),

		ChainID: uint64(getEnvInt64("TXBRIDGE_CHAIN_ID", 1)),

		ServiceID: getEnv("TXBRIDGE_SERVICE_ID", "txbridge-default"),
		LogLevel:  getEnv("TXBRIDGE_LOG_LEVEL", "info"),

		SupportedProtocolVersions: parseCSV(getEnv("TXBRIDGE_PROTOCOL_VERSIONS", "0.2")),
		SupportedChainIDs:         parseUint64CSV(getEnv("TXBRIDGE_SUPPORTED_CHAIN_IDS", "")),
		HeartbeatIntervalSecs:     uint64(getEnvInt("TXBRIDGE_HEARTBEAT_INTERVAL_SECS", 30)),
		SessionTimeout:            getEnvDuration("TXBRIDGE_SESSION_TIMEOUT", 15*time.Minute),
		MsgCacheCapacity:          getEnvInt("TXBRIDGE_MSG_CACHE_CAPACITY", 4096),

		ProfileCatalogPath: getEnv("TXBRIDGE_PROFILE_CATALOG_PATH", ""),

		AuditEnabled:            getEnvBool("TXBRIDGE_AUDIT_ENABLED", false),
		FirebaseProjectID:       getEnv("TXBRIDGE_FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		BlockGenesisHeight: uint64(getEnvInt("TXBRIDGE_BLOCK_GENESIS_HEIGHT", 0)),
		BlockGenesisUnix:   uint64(getEnvInt("TXBRIDGE_BLOCK_GENESIS_UNIX", 0)),
		BlockIntervalSecs:  uint64(getEnvInt("TXBRIDGE_BLOCK_INTERVAL_SECS", 6)),
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
// before the engine is wired up.
func (c *Config) Validate() error {
	var errs []string

	if len(c.SupportedProtocolVersions) == 0 {
		errs = append(errs, "TXBRIDGE_PROTOCOL_VERSIONS must list at least one protocol version")
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, "TXBRIDGE_SESSION_TIMEOUT must be positive")
	}
	if c.MsgCacheCapacity <= 0 {
		errs = append(errs, "TXBRIDGE_MSG_CACHE_CAPACITY must be positive")
	}
	if c.AuditEnabled && c.FirebaseProjectID == "" {
		errs = append(errs, "TXBRIDGE_FIREBASE_PROJECT_ID is required when TXBRIDGE_AUDIT_ENABLED is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseUint64CSV(value string) []uint64 {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			continue
		}
		result = append(result, n)
	}
	return result
}
