package config_test

import (
	"testing"
	"time"

	"github.com/noah-isme/toko-storefront/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"UPSTREAM_BASE_URL": "http://upstream.local",
		"REDIS_URL":         "redis://localhost:6379/0",
		"JWT_SECRET":        "secret",
		"APP_ENV":           "",
		"PORT":              "",
		"SESSION_TTL":       "",
		"CART_SEED_DEMO":    "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("unexpected env %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected session ttl %v", cfg.SessionTTL)
	}
	if cfg.SessionCookieName != "sid" {
		t.Fatalf("unexpected cookie name %q", cfg.SessionCookieName)
	}
	if cfg.SeedDemoCart {
		t.Fatal("demo seed must default to off")
	}
	if cfg.UpstreamMaxAttempts != 3 {
		t.Fatalf("unexpected max attempts %d", cfg.UpstreamMaxAttempts)
	}
}

func TestLoadRequiredVariables(t *testing.T) {
	for _, key := range []string{"UPSTREAM_BASE_URL", "REDIS_URL", "JWT_SECRET"} {
		env := baseEnv()
		env[key] = ""
		if _, err := config.LoadForTests(env); err == nil {
			t.Fatalf("expected error when %s is missing", key)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["SESSION_TTL"] = "2h"
	env["CART_SEED_DEMO"] = "true"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	env["UPSTREAM_BASE_URL"] = "http://upstream.local/"

	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.SessionTTL)
	}
	if !cfg.SeedDemoCart {
		t.Fatal("expected demo seed enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UpstreamBaseURL != "http://upstream.local" {
		t.Fatalf("trailing slash must be trimmed, got %q", cfg.UpstreamBaseURL)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	env := baseEnv()
	env["SESSION_TTL"] = "bogus"
	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected fallback ttl, got %v", cfg.SessionTTL)
	}
}
