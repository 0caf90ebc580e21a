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
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address: %s", cfg.Server.Address)
	}
	if cfg.Server.OpsAddress != ":2112" {
		t.Fatalf("unexpected default ops address: %s", cfg.Server.OpsAddress)
	}
	if cfg.Correlation.TimeWindowMinutes != 10 {
		t.Fatalf("unexpected default correlation window: %d", cfg.Correlation.TimeWindowMinutes)
	}
	if cfg.Forecast.Method != "ewma" || cfg.Forecast.HorizonDays != 7 {
		t.Fatalf("unexpected forecast defaults: %+v", cfg.Forecast)
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache should default to disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `server:
  opsAddress: ":9090"
docstore:
  endpoint: "https://docstore.internal"
  apiKey: "secret"
  timeout: 3s
email:
  endpoint: "https://mail.internal"
  apiKey: "mail-key"
  from: "alerts@pulsewatch.dev"
correlation:
  timeWindowMinutes: 30
cache:
  enabled: true
  addr: "localhost:6379"
  preferencesTTL: 1m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.OpsAddress != ":9090" {
		t.Fatalf("file value not applied: %s", cfg.Server.OpsAddress)
	}
	if cfg.DocStore.Endpoint != "https://docstore.internal" || cfg.DocStore.Timeout != 3*time.Second {
		t.Fatalf("docstore config not parsed: %+v", cfg.DocStore)
	}
	if cfg.Correlation.TimeWindowMinutes != 30 {
		t.Fatalf("correlation window not parsed: %d", cfg.Correlation.TimeWindowMinutes)
	}
	if !cfg.Cache.Enabled || cfg.Cache.PreferencesTTL != time.Minute {
		t.Fatalf("cache config not parsed: %+v", cfg.Cache)
	}
	// Unset fields keep their defaults.
	if cfg.Cache.ChannelsTTL != 5*time.Minute {
		t.Fatalf("expected default channels TTL, got %v", cfg.Cache.ChannelsTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PULSE_DOCSTORE_ENDPOINT", "https://override.internal")
	t.Setenv("PULSE_ALERTING_CORRELATION_WINDOW_MINUTES", "45")
	t.Setenv("PULSE_ALERTING_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DocStore.Endpoint != "https://override.internal" {
		t.Fatalf("env override not applied: %s", cfg.DocStore.Endpoint)
	}
	if cfg.Correlation.TimeWindowMinutes != 45 {
		t.Fatalf("env override not applied: %d", cfg.Correlation.TimeWindowMinutes)
	}
	if !cfg.Logging.JSON {
		t.Fatalf("expected JSON logging from env override")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for explicitly named missing file")
	}
}
