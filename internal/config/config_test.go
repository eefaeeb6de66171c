// Copyright 2025 James Ross
package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capacity.TotalUnits != 100 {
		t.Fatalf("expected default total_units 100, got %d", cfg.Capacity.TotalUnits)
	}
	if cfg.Lease.TTL != 60*time.Second {
		t.Fatalf("expected default lease ttl 60s, got %s", cfg.Lease.TTL)
	}
	if cfg.BusyRating.FailClosedDefault != 8 {
		t.Fatalf("expected default failclosed busy rating 8, got %d", cfg.BusyRating.FailClosedDefault)
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Capacity.HeadroomPct = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for headroom_pct > 1")
	}

	cfg = defaultConfig()
	cfg.Lease.TTL = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for lease.ttl <= 0")
	}

	cfg = defaultConfig()
	cfg.BusyRating.FailClosedDefault = 11
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for failclosed_default > 10")
	}

	cfg = defaultConfig()
	cfg.Expiry.TickInterval = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for expiry.tick_interval <= 0")
	}
}

func TestValidatePasses(t *testing.T) {
	if err := Validate(defaultConfig()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}
