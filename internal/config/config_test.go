package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEN_API_KEY", "")
	t.Setenv("HISTORY_DRIVER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPPort != "8000" {
		t.Fatalf("expected default port 8000, got %q", cfg.HTTPPort)
	}
	if cfg.HasAPIKey() {
		t.Fatalf("expected missing api key to be allowed at load time")
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Fatalf("expected 10 requests per minute, got %d", cfg.RateLimitPerMinute)
	}
	if len(cfg.CORSAllowOrigins) != 1 || cfg.CORSAllowOrigins[0] != "*" {
		t.Fatalf("expected allow-all cors, got %v", cfg.CORSAllowOrigins)
	}
}

func TestLoadConfigNormalizesValues(t *testing.T) {
	t.Setenv("GEN_API_KEY", "  secret  ")
	t.Setenv("HISTORY_DRIVER", " Postgres ")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.GenAPIKey != "secret" || !cfg.HasAPIKey() {
		t.Fatalf("expected trimmed api key, got %q", cfg.GenAPIKey)
	}
	if cfg.HistoryDriver != HistoryDriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.HistoryDriver)
	}
	if len(cfg.CORSAllowOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowOrigins)
	}
}
