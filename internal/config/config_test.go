package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "TIERS_FILE", "REDEMPTION_TTL", "FIRST_ORDER_BONUS", "BUSINESS_TZ", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" || c.RedemptionTTL != 30*24*time.Hour || c.FirstOrderBonus != 25 {
		t.Fatalf("defaults = %+v", c)
	}
	if c.BusinessLocation != time.UTC {
		t.Fatalf("location = %v", c.BusinessLocation)
	}
	if got := c.Tiers.Classify(500).Tier; got != "Gold" {
		t.Fatalf("default tiers classify 500 as %q", got)
	}
	if len(c.CORSOrigins) != 1 || c.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("CORSOrigins = %v", c.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.yaml")
	yaml := "tiers:\n  - {name: Member, min_points: 0, earn_multiplier: 5}\n  - {name: VIP, min_points: 100, earn_multiplier: 20}\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write tiers: %v", err)
	}
	t.Setenv("TIERS_FILE", path)
	t.Setenv("REDEMPTION_TTL", "2h")
	t.Setenv("BUSINESS_TZ", "America/New_York")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDEEM_RATE_PER_MINUTE", "3")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Tiers.Classify(150).Tier != "VIP" || c.RedemptionTTL != 2*time.Hour || c.RedeemRatePerMinute != 3 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.BusinessLocation.String() != "America/New_York" {
		t.Fatalf("location = %v", c.BusinessLocation)
	}
	if len(c.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v", c.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"REDEMPTION_TTL":        "soon",
		"FIRST_ORDER_BONUS":     "lots",
		"BUSINESS_TZ":           "Mars/Olympus",
		"EXPIRY_SWEEP_INTERVAL": "0s",
		"TIERS_FILE":            "/does/not/exist.yaml",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q: expected error", key, val)
			}
		})
	}

	t.Run("production secrets", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for default secret in production")
		}
	})
}
