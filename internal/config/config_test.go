package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "DRAFT_STORE", "DRAFT_DEBOUNCE", "REQUEST_MIN_INTERVAL", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "GHL_BASE_URL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DraftStore != "memory" {
		t.Fatalf("expected memory draft store by default, got %s", cfg.DraftStore)
	}
	if cfg.DraftDebounce != 2*time.Second || cfg.DraftAutosaveInterval != 30*time.Second {
		t.Fatalf("unexpected draft timing defaults %s/%s", cfg.DraftDebounce, cfg.DraftAutosaveInterval)
	}
	if cfg.RequestMinInterval != 2*time.Second {
		t.Fatalf("expected 2s request interval, got %s", cfg.RequestMinInterval)
	}
	if cfg.GHLBaseURL != "https://services.leadconnectorhq.com" {
		t.Fatalf("unexpected ghl base url %s", cfg.GHLBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected rate limiting off by default, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("DRAFT_STORE", " Redis ")
	t.Setenv("DRAFT_MEMORY_MAX_BYTES", "1024")
	t.Setenv("DRAFT_DEBOUNCE", "500ms")
	t.Setenv("REQUEST_MIN_INTERVAL", "5s")
	t.Setenv("GHL_TIMEOUT", "bogus")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.DraftStore != "redis" {
		t.Fatalf("expected normalized draft store, got %q", cfg.DraftStore)
	}
	if cfg.DraftMemoryMaxBytes != 1024 {
		t.Fatalf("expected quota override, got %d", cfg.DraftMemoryMaxBytes)
	}
	if cfg.DraftDebounce != 500*time.Millisecond {
		t.Fatalf("expected debounce override, got %s", cfg.DraftDebounce)
	}
	if cfg.RequestMinInterval != 5*time.Second {
		t.Fatalf("expected interval override, got %s", cfg.RequestMinInterval)
	}
	if cfg.GHLTimeout != 15*time.Second {
		t.Fatalf("expected invalid duration to fall back, got %s", cfg.GHLTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitRPS)
	}
}
