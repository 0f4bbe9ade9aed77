package config

import (
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RECORDS_BASE_URL", "http://backend:4000/api/")
}

func TestLoad_Defaults(t *testing.T) {
	setBase(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.AniListURL != "https://graphql.anilist.co" {
		t.Fatalf("anilist url: %q", cfg.Providers.AniListURL)
	}
	if cfg.Providers.JikanBaseURL != "https://api.jikan.moe/v4" {
		t.Fatalf("jikan url: %q", cfg.Providers.JikanBaseURL)
	}
	if cfg.BackendURL != "http://backend:4000/api" {
		t.Fatalf("backend url not trimmed: %q", cfg.BackendURL)
	}
	if cfg.BulkConcurrency != 3 {
		t.Fatalf("concurrency: %d", cfg.BulkConcurrency)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("timeout: %v", cfg.HTTPTimeout)
	}
	if cfg.RecordsBackend != RecordsHTTP || cfg.UploadBackend != UploadHTTP {
		t.Fatalf("backends: %q %q", cfg.RecordsBackend, cfg.UploadBackend)
	}
	if !cfg.ProxyEnabled() || cfg.Proxy.AllowedHosts[0] != "lain.bgm.tv" {
		t.Fatalf("proxy hosts: %v", cfg.Proxy.AllowedHosts)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBase(t)
	t.Setenv("BULK_CONCURRENCY", "8")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("JIKAN_RPS", "0.5")
	t.Setenv("UPLOAD_BACKEND", "LOCAL")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://admin.example, ,https://b.example")
	t.Setenv("HTTP_MAX_RETRIES", "nope")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BulkConcurrency != 8 || cfg.HTTPTimeout != 3*time.Second {
		t.Fatalf("got %d %v", cfg.BulkConcurrency, cfg.HTTPTimeout)
	}
	if cfg.Providers.JikanRPS != 0.5 {
		t.Fatalf("jikan rps: %v", cfg.Providers.JikanRPS)
	}
	if cfg.UploadBackend != UploadLocal {
		t.Fatalf("upload backend: %q", cfg.UploadBackend)
	}
	if len(cfg.WSOrigins) != 2 {
		t.Fatalf("origins: %v", cfg.WSOrigins)
	}
	if cfg.HTTPMaxRetries != 2 {
		t.Fatalf("invalid int should fall back, got %d", cfg.HTTPMaxRetries)
	}
}

func TestLoad_Required(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RECORDS_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without RECORDS_BASE_URL")
	}

	t.Setenv("RECORDS_BACKEND", "postgres")
	t.Setenv("UPLOAD_BACKEND", "local")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/anime")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("ENABLE_ASYNC_BULK", "true")
	t.Setenv("NATS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for async bulk without NATS_URL")
	}
}
