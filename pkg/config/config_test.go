package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("expected default store backend 'file', got %q", cfg.Store.Backend)
	}
	if cfg.Suggest.MinQueryLength != 2 {
		t.Errorf("expected default min query length 2, got %d", cfg.Suggest.MinQueryLength)
	}
	if cfg.Suggest.DebounceDelay != 300*time.Millisecond {
		t.Errorf("expected default debounce 300ms, got %v", cfg.Suggest.DebounceDelay)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", cfg.OpenAI.Model)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("SUGGEST_MIN_QUERY_LENGTH", "3")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "postgres" {
		t.Errorf("expected store backend 'postgres', got %q", cfg.Store.Backend)
	}
	if cfg.Suggest.MinQueryLength != 3 {
		t.Errorf("expected min query length 3, got %d", cfg.Suggest.MinQueryLength)
	}
	if !cfg.Redis.Enabled {
		t.Error("expected redis enabled")
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected fallback port 8080, got %d", cfg.Server.Port)
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret",
		Database: "conditions", SSLMode: "disable",
	}
	want := "host=db port=5432 user=app password=secret dbname=conditions sslmode=disable"
	if got := c.DatabaseDSN(); got != want {
		t.Errorf("unexpected DSN: %s", got)
	}
}
