package model

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if !cfg.Grounding.StrictAbstain {
		t.Error("Expected strict abstain to default to true")
	}
	if cfg.Arxiv.PrimaryCategory != "math.AG" {
		t.Errorf("Expected primary category math.AG, got %s", cfg.Arxiv.PrimaryCategory)
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown provider": func(c *Config) { c.LLM.Provider = "mystery" },
		"zero raw files":   func(c *Config) { c.Arxiv.MaxRawFiles = 0 },
		"stop ratio > 1":   func(c *Config) { c.Arxiv.StopRatio = 1.5 },
		"bad log level":    func(c *Config) { c.Log.Level = "loud" },
		"empty data dir":   func(c *Config) { c.DataDir = "" },
	}

	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/srv/mf"

	if got := cfg.RawDir(); got != filepath.Join("/srv/mf", "raw") {
		t.Errorf("Unexpected raw dir: %s", got)
	}
	if got := cfg.IndexPath(); got != filepath.Join("/srv/mf", "index", "mathfoundry.db") {
		t.Errorf("Unexpected index path: %s", got)
	}
	if got := cfg.CacheDir(); got != filepath.Join("/srv/mf", "cache") {
		t.Errorf("Unexpected cache dir: %s", got)
	}

	cfg.Cache.Dir = "/tmp/c"
	if got := cfg.CacheDir(); got != "/tmp/c" {
		t.Errorf("Expected explicit cache dir, got %s", got)
	}
}
