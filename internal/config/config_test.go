package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.KafkaTopic != "donor-updates" || cfg.RedisGeoKey != "donors_geo" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MatchDeadline != 10*time.Second || cfg.StatsWindow != 1000 {
		t.Fatalf("unexpected matching defaults: %+v", cfg)
	}
}

func TestLoadServerConfigOverridesAndValidation(t *testing.T) {
	t.Setenv("MATCH_DEADLINE", "2s")
	t.Setenv("STATS_WINDOW", "50")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MatchDeadline != 2*time.Second || cfg.StatsWindow != 50 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("broker list not trimmed: %v", cfg.KafkaBrokers)
	}

	t.Setenv("STATS_WINDOW", "0")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation error for STATS_WINDOW=0")
	}
	t.Setenv("STATS_WINDOW", "bogus")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected parse error for STATS_WINDOW=bogus")
	}
}
