package config

import (
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so host environment cannot leak
// into the assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT",
		"IDLE_TIMEOUT", "MAX_HEADER_BYTES", "GIN_MODE",
		"LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED", "API_BASE_PATH",
		"DB_PATH", "RETENTION_WINDOW", "CLEANUP_INTERVAL", "DEDUPE_TTL",
		"BRIDGE_TOKEN", "RATE_RPS", "RATE_BURST",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE",
		"HOPPIE_URL", "HOPPIE_LOGON", "HOPPIE_POLL_INTERVAL", "HOPPIE_BATCH_SIZE",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "relay.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RetentionWindow != time.Hour {
		t.Fatalf("RetentionWindow = %v", cfg.RetentionWindow)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Fatalf("CleanupInterval = %v", cfg.CleanupInterval)
	}
	if cfg.DedupeTTL != 24*time.Hour {
		t.Fatalf("DedupeTTL = %v", cfg.DedupeTTL)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Hoppie.Enabled() {
		t.Fatal("bridge enabled without a logon code")
	}
	if cfg.Hoppie.PollInterval != time.Minute || cfg.Hoppie.BatchSize != 20 {
		t.Fatalf("Hoppie defaults: %+v", cfg.Hoppie)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RETENTION_WINDOW", "30m")
	t.Setenv("API_BASE_PATH", "relay/v2/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("HOPPIE_LOGON", "secret")
	t.Setenv("BRIDGE_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.RetentionWindow != 30*time.Minute {
		t.Fatalf("RetentionWindow = %v", cfg.RetentionWindow)
	}
	if cfg.APIBasePath != "/relay/v2" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Hoppie.Enabled() {
		t.Fatal("bridge should be enabled once a logon code is set")
	}
	if cfg.BridgeToken != "tok" {
		t.Fatalf("BridgeToken = %q", cfg.BridgeToken)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		k, v string
	}{
		{"non-numeric port", "PORT", "http"},
		{"negative read timeout", "READ_TIMEOUT", "-1s"},
		{"zero cleanup interval", "CLEANUP_INTERVAL", "0s"},
		{"zero retention", "RETENTION_WINDOW", "0s"},
		{"zero dedupe ttl", "DEDUPE_TTL", "0s"},
		{"zero rate burst", "RATE_BURST", "0"},
		{"zero hoppie batch", "HOPPIE_BATCH_SIZE", "0"},
		{"zero hoppie poll", "HOPPIE_POLL_INTERVAL", "0s"},
		{"sampler out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.k, tc.v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.k, tc.v)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"":        "/",
		"/":       "/",
		"api":     "/api",
		"/api/":   "/api",
		"/api/v1": "/api/v1",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
