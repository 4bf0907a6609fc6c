package config

import (
	"testing"
	"time"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected default base url: %q", cfg.BaseURL)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.HTTPTimeout)
	}
	if cfg.DataDir == "" {
		t.Fatal("expected a derived data dir")
	}
}

func TestLoadClientFromEnv(t *testing.T) {
	t.Setenv("POLL_API_URL", "https://polls.example.com/api/v1")
	t.Setenv("POLL_DATA_DIR", "/tmp/pollcli-test")
	t.Setenv("POLL_HTTP_TIMEOUT", "3s")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://polls.example.com/api/v1" {
		t.Fatalf("unexpected base url: %q", cfg.BaseURL)
	}
	if cfg.DataDir != "/tmp/pollcli-test" {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.HTTPTimeout)
	}
}

func TestLoadStubDefaults(t *testing.T) {
	cfg, err := LoadStub()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.JWTSecret == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.VotesPerMin != 0 {
		t.Fatalf("rate limiting must default off, got %d", cfg.VotesPerMin)
	}
}
