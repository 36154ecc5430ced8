package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.APIPort)
	}
	if cfg.Worker.Concurrency != 2 {
		t.Errorf("expected default concurrency 2, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Provider.Reservoir != 250 || cfg.Provider.ReservoirWindow != time.Hour {
		t.Errorf("unexpected reservoir defaults: %d per %v", cfg.Provider.Reservoir, cfg.Provider.ReservoirWindow)
	}
	if cfg.Cache.TTL != 300*time.Second {
		t.Errorf("expected cache TTL 300s, got %v", cfg.Cache.TTL)
	}
	if got := cfg.Provider.Networks["ethereum"]; got != "eth-mainnet" {
		t.Errorf("expected ethereum -> eth-mainnet, got %q", got)
	}
	if cfg.Queue.RemoveOnComplete {
		t.Error("expected job records retained by default")
	}
	if cfg.Backfill.PersistDerived {
		t.Error("expected derived prices not persisted by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ALCHEMY_API_KEY", "test-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIPort != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.APIPort)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Errorf("expected redis override, got %q", cfg.RedisAddr)
	}
	if cfg.Provider.APIKey != "test-key" {
		t.Errorf("expected api key override, got %q", cfg.Provider.APIKey)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
api_port: 3001
provider:
  networks:
    base: base-mainnet
worker:
  concurrency: 4
queue:
  remove_on_complete: true
backfill:
  persist_derived: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIPort != 3001 {
		t.Errorf("expected port 3001, got %d", cfg.APIPort)
	}
	if got := cfg.Provider.Networks["base"]; got != "base-mainnet" {
		t.Errorf("expected base -> base-mainnet, got %q", got)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Worker.Concurrency)
	}
	if !cfg.Queue.RemoveOnComplete {
		t.Error("expected remove_on_complete true")
	}
	if !cfg.Backfill.PersistDerived {
		t.Error("expected persist_derived true")
	}

	// defaults still fill the gaps
	if cfg.Worker.JobsPerSecond != 40 {
		t.Errorf("expected default jobs_per_second 40, got %v", cfg.Worker.JobsPerSecond)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
