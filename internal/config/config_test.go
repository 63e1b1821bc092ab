package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "trendsignal-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.Env != "dev" {
		t.Fatalf("unexpected App.Env: %s", cfg.App.Env)
	}
	if cfg.App.MetricsAddr != ":2112" {
		t.Fatalf("unexpected App.MetricsAddr: %s", cfg.App.MetricsAddr)
	}
	if cfg.Market.Provider != "rest" {
		t.Fatalf("unexpected Market.Provider: %s", cfg.Market.Provider)
	}
	if cfg.Market.BaseURL != "https://market.example.com" {
		t.Fatalf("unexpected Market.BaseURL: %s", cfg.Market.BaseURL)
	}
	if cfg.Market.StreamURL != "wss://market.example.com" {
		t.Fatalf("unexpected Market.StreamURL: %s", cfg.Market.StreamURL)
	}
	if cfg.Market.PollIntervalMs != 750 {
		t.Fatalf("unexpected Market.PollIntervalMs: %d", cfg.Market.PollIntervalMs)
	}
	if cfg.Market.SubmitTimeoutSecs != 10 {
		t.Fatalf("unexpected Market.SubmitTimeoutSecs: %d", cfg.Market.SubmitTimeoutSecs)
	}
	if cfg.Contract.Address != "0x90f79bf6eb2c4f870365e785982e1f101e93b906" {
		t.Fatalf("unexpected Contract.Address: %s", cfg.Contract.Address)
	}
	if cfg.Contract.TxTimeoutSecs != 15 {
		t.Fatalf("unexpected Contract.TxTimeoutSecs: %d", cfg.Contract.TxTimeoutSecs)
	}
	if cfg.Contract.ConfirmIntervalMs != 200 {
		t.Fatalf("unexpected Contract.ConfirmIntervalMs: %d", cfg.Contract.ConfirmIntervalMs)
	}
	if cfg.Recovery.MaxConfidence != 100 {
		t.Fatalf("unexpected Recovery.MaxConfidence: %d", cfg.Recovery.MaxConfidence)
	}
	if cfg.Recovery.MinPredictedWei != "100000000000000000" {
		t.Fatalf("unexpected Recovery.MinPredictedWei: %s", cfg.Recovery.MinPredictedWei)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	minimal := "market:\n  provider: stub\n"
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.App.Name != "trendsignal" {
		t.Fatalf("expected default app name, got %s", cfg.App.Name)
	}
	if cfg.App.Env != "dev" {
		t.Fatalf("expected default env, got %s", cfg.App.Env)
	}
	if cfg.Market.PollIntervalMs != 5000 {
		t.Fatalf("expected default poll interval, got %d", cfg.Market.PollIntervalMs)
	}
	if cfg.Market.SubmitTimeoutSecs != 30 {
		t.Fatalf("expected default submit timeout, got %d", cfg.Market.SubmitTimeoutSecs)
	}
	if cfg.Contract.TxTimeoutSecs != 30 {
		t.Fatalf("expected default tx timeout, got %d", cfg.Contract.TxTimeoutSecs)
	}
	if cfg.Contract.ConfirmIntervalMs != 1000 {
		t.Fatalf("expected default confirm interval, got %d", cfg.Contract.ConfirmIntervalMs)
	}
	if cfg.Recovery.MaxConfidence != 100 {
		t.Fatalf("expected default max confidence, got %d", cfg.Recovery.MaxConfidence)
	}
	if cfg.Recovery.MinPredictedWei != "100000000000000000" {
		t.Fatalf("expected default floor, got %s", cfg.Recovery.MinPredictedWei)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	bad := "market:\n  provider: carrier-pigeon\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown provider")
	}
}

func TestLoadRequiresBaseURLForRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	bad := "market:\n  provider: rest\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing base url")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MARKET_BASE_URL", "https://override.example.com")
	t.Setenv("CONTRACT_ADDRESS", "0xabc0000000000000000000000000000000000001")

	cfg, err := LoadWithEnv(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadWithEnv returned error: %v", err)
	}
	if cfg.Market.BaseURL != "https://override.example.com" {
		t.Fatalf("expected env override for base url, got %s", cfg.Market.BaseURL)
	}
	if cfg.Contract.Address != "0xabc0000000000000000000000000000000000001" {
		t.Fatalf("expected env override for address, got %s", cfg.Contract.Address)
	}
}
