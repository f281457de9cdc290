package infra

import (
	"errors"
	"testing"
	"time"

	"videogen/internal/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"RUNWAY_BASE_URL", "RUNWAY_API_VERSION", "POLL_INTERVAL_SECONDS", "POLL_MAX_WAIT_SECONDS",
		"POLL_MAX_ATTEMPTS", "FETCH_RETRIES", "PAD_COLOR", "IMAGE_FORMAT", "WORKER_CONCURRENCY",
		"RUNWAY_DOWNLOAD_TIMEOUT_SECONDS", "RUNWAY_REQUEST_TIMEOUT_SECONDS", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RunwayBaseURL != "https://api.dev.runwayml.com" {
		t.Fatalf("RunwayBaseURL = %q", cfg.RunwayBaseURL)
	}
	if cfg.RunwayAPIVersion != "2024-11-06" {
		t.Fatalf("RunwayAPIVersion = %q", cfg.RunwayAPIVersion)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.RunwayRequestTimeout != 60*time.Second || cfg.RunwayDownloadTimeout != 120*time.Second {
		t.Fatalf("timeouts = %v/%v, want 60s/120s", cfg.RunwayRequestTimeout, cfg.RunwayDownloadTimeout)
	}
	if cfg.FetchRetries != 3 || cfg.WorkerConcurrency != 2 {
		t.Fatalf("FetchRetries = %d WorkerConcurrency = %d", cfg.FetchRetries, cfg.WorkerConcurrency)
	}
	if cfg.PadColor != "#FFFFFF" || cfg.ImageFormat != "png" {
		t.Fatalf("image policy = %q/%q", cfg.PadColor, cfg.ImageFormat)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigTrimsBaseURLAndParsesOrigins(t *testing.T) {
	t.Setenv("RUNWAY_BASE_URL", "https://api.runwayml.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RunwayBaseURL != "https://api.runwayml.com" {
		t.Fatalf("RunwayBaseURL = %q", cfg.RunwayBaseURL)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %#v, want %#v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "POLL_INTERVAL_SECONDS", value: "-1"},
		{key: "FETCH_RETRIES", value: "-2"},
		{key: "WORKER_CONCURRENCY", value: "0"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := LoadConfig()
			var cerr *domain.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("LoadConfig error = %v, want ConfigError", err)
			}
			if cerr.Key != tc.key {
				t.Fatalf("Key = %q, want %q", cerr.Key, tc.key)
			}
		})
	}
}

func TestRequireDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if err := cfg.RequireDatabase(); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("RequireDatabase error = %v, want ErrConfig", err)
	}

	cfg.DatabaseURL = "postgres://example"
	if err := cfg.RequireDatabase(); err != nil {
		t.Fatalf("RequireDatabase returned error: %v", err)
	}
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		concurrency int
		want        int32
	}{
		{concurrency: 0, want: 4},
		{concurrency: 1, want: 4},
		{concurrency: 2, want: 6},
		{concurrency: 8, want: 18},
	}
	for _, tt := range tests {
		if got := PoolSize(tt.concurrency); got != tt.want {
			t.Fatalf("PoolSize(%d) = %d, want %d", tt.concurrency, got, tt.want)
		}
	}
}
