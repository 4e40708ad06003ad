// Copyright 2025 Certen Protocol
//
// Profile catalog configuration loader: overlays operator-defined
// escrow profiles on top of pkg/profile's built-in catalog from a YAML
// file, with ${VAR_NAME} environment-variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/txbridge/engine/pkg/profile"
)

// ProfileCatalogFile is the on-disk shape of a profile catalog
// overlay: a map of profile name to its timing and discount settings.
type ProfileCatalogFile struct {
	Profiles map[string]ProfileEntry `yaml:"profiles"`
}

// ProfileEntry is one named profile's YAML representation.
type ProfileEntry struct {
	AcceptanceWindowSecs  uint64 `yaml:"acceptance_window_secs"`
	FulfillmentWindowSecs uint64 `yaml:"fulfillment_window_secs"`
	ClaimWindowSecs       uint64 `yaml:"claim_window_secs"`
	AllowsTimedRelease    bool   `yaml:"allows_timed_release"`
	EnablesLateDiscount   bool   `yaml:"enables_late_discount"`
	LateDiscountPct       uint8  `yaml:"late_discount_pct"`
	DiscountExpirationDays uint64 `yaml:"discount_expiration_days"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}, the same
// substitution convention the validator's anchor config loader uses.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadProfileCatalog reads a profile catalog overlay from path and
// merges it on top of profile.DefaultCatalog(), so an operator need
// only specify the profiles they want to add or override.
func LoadProfileCatalog(path string) (profile.Catalog, error) {
	catalog := profile.DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile catalog %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var file ProfileCatalogFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parse profile catalog %s: %w", path, err)
	}

	for name, entry := range file.Profiles {
		p := profile.Profile{
			Timing: profile.Timing{
				AcceptanceWindowSecs:  entry.AcceptanceWindowSecs,
				FulfillmentWindowSecs: entry.FulfillmentWindowSecs,
				ClaimWindowSecs:       entry.ClaimWindowSecs,
			},
			AllowsTimedRelease:     entry.AllowsTimedRelease,
			EnablesLateDiscount:    entry.EnablesLateDiscount,
			LateDiscountPct:        entry.LateDiscountPct,
			DiscountExpirationDays: entry.DiscountExpirationDays,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile catalog %s: profile %q: %w", path, name, err)
		}
		catalog[name] = p
	}

	return catalog, nil
}
