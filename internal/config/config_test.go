package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Stellar.IssuerSeed = "SCZANGBA5YHTNYVVV4C3U252E2B6P6F5T3U6MM63WBSBZATAQI3EBTQ4"
	return cfg
}

func TestDefaultsValidateWithSeed(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with issuer seed should validate, got: %v", err)
	}
}

func TestValidateRejectsMissingSeed(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing issuer seed")
	}
	if !strings.Contains(err.Error(), "issuer_seed") {
		t.Errorf("error should mention issuer_seed, got: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Redis.Addr = ""
	cfg.Escrow.OpenRateLimit = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "redis: addr", "open_rate_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should contain %q, got: %v", want, err)
		}
	}
}

func TestValidateAssetPrefixLength(t *testing.T) {
	cfg := validConfig()
	cfg.Stellar.AssetPrefix = "TOOLONGPREFIX"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for long asset prefix")
	}
}

func TestCommissionRate(t *testing.T) {
	cfg := validConfig()
	cfg.Settlement.DefaultRate = 0.03
	cfg.Settlement.TierRates = map[string]float64{"master": 0.025}

	if got := cfg.CommissionRate("master"); got != 0.025 {
		t.Errorf("CommissionRate(master) = %v, want 0.025", got)
	}
	if got := cfg.CommissionRate("unknown"); got != 0.03 {
		t.Errorf("CommissionRate(unknown) = %v, want default 0.03", got)
	}
}
